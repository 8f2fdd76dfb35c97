package category

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"media-vfs/internal/logging"
	"media-vfs/internal/metrics"
	"media-vfs/internal/vfs"
)

const (
	// CategoryNameRuleKey is the settings key prefix of category-name rules.
	// Rules are numbered from 0: FullBuildCategoryNameParser0, ...1, ...
	CategoryNameRuleKey = "FullBuildCategoryNameParser"

	// LabelNameRuleKey is the settings key prefix of label rules.
	LabelNameRuleKey = "FullBuildCategoryLabelNameParser"

	// CategoryNameGroup is the named group a category-name rule must capture.
	CategoryNameGroup = "CategoryName"

	// MaxParserRules bounds the rule index scan.
	MaxParserRules = 1000

	// DefaultRootCategoryID is the category every path hangs off.
	DefaultRootCategoryID int64 = 1

	eventSender = "Core"
)

// Publisher is the subset of messaging.Dispatcher the resolver needs.
type Publisher interface {
	Dispatch(name string, payload interface{}) int
}

// Config wires a Resolver to its collaborators.
type Config struct {
	Categories vfs.CategoryRepository
	Labels     vfs.LabelRepository
	Settings   vfs.AppMetaInfoRepository
	Events     vfs.EventLogRepository
	Publisher  Publisher

	// RootCategoryID defaults to DefaultRootCategoryID.
	RootCategoryID int64
}

// Result is the outcome of resolving one mapping path.
type Result struct {
	// Title is the final path segment.
	Title string
	// Category is the leaf category the content belongs to.
	Category *vfs.Category
	// Created lists the categories created during resolution, root-adjacent first.
	Created []*vfs.Category
}

// Resolver turns the directory segments of a workspace-relative path into a
// chain of categories, creating missing ones and attaching labels parsed
// from each segment.
type Resolver struct {
	cfg Config
	now func() time.Time

	mu sync.Mutex
	// compiled holds the last compiled pattern per rule key.
	compiled map[string]*regexp.Regexp
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	if cfg.RootCategoryID == 0 {
		cfg.RootCategoryID = DefaultRootCategoryID
	}
	return &Resolver{
		cfg:      cfg,
		now:      time.Now,
		compiled: make(map[string]*regexp.Regexp),
	}
}

// RootCategoryID returns the configured root category.
func (r *Resolver) RootCategoryID() int64 {
	return r.cfg.RootCategoryID
}

// Resolve walks mappingPath and returns the leaf category. Categories are
// reused by name under the same parent.
func (r *Resolver) Resolve(ctx context.Context, mappingPath string) (*Result, error) {
	segments := splitPath(mappingPath)
	if len(segments) == 0 {
		return nil, vfs.Preconditionf("empty mapping path")
	}

	current, err := r.cfg.Categories.Load(ctx, r.cfg.RootCategoryID)
	if err != nil {
		return nil, fmt.Errorf("loading root category %d: %w", r.cfg.RootCategoryID, err)
	}

	result := &Result{Title: segments[len(segments)-1]}
	for _, segment := range segments[:len(segments)-1] {
		name, parsed, err := r.parseCategoryName(ctx, segment)
		if err != nil {
			return nil, err
		}

		next, created, err := r.materialize(ctx, current.ID, name)
		if err != nil {
			return nil, err
		}
		if created {
			result.Created = append(result.Created, next)
		}

		if err := r.attachLabels(ctx, next.ID, segment); err != nil {
			return nil, err
		}

		if created && parsed && r.cfg.Publisher != nil {
			r.cfg.Publisher.Dispatch(vfs.MsgNewCategory, next.ID)
		}
		current = next
	}

	result.Category = current
	return result, nil
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(filepath.ToSlash(p), "/") {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}

// parseCategoryName runs the category-name rules over segment. The raw
// segment is returned with parsed=false when no rule applies.
func (r *Resolver) parseCategoryName(ctx context.Context, segment string) (string, bool, error) {
	for i := 0; i < MaxParserRules; i++ {
		re, ok, err := r.rule(ctx, CategoryNameRuleKey, i, "category")
		if err != nil {
			return "", false, err
		}
		if !ok || re == nil {
			break
		}

		idx := re.SubexpIndex(CategoryNameGroup)
		if idx < 0 {
			continue
		}
		loc := re.FindStringSubmatchIndex(segment)
		if loc == nil || loc[2*idx] < 0 {
			continue
		}
		if name := segment[loc[2*idx]:loc[2*idx+1]]; name != "" {
			return name, true, nil
		}
	}
	return segment, false, nil
}

// attachLabels applies the first matching label rule to segment.
func (r *Resolver) attachLabels(ctx context.Context, categoryID int64, segment string) error {
	for i := 0; i < MaxParserRules; i++ {
		re, ok, err := r.rule(ctx, LabelNameRuleKey, i, "label")
		if err != nil {
			return err
		}
		if !ok || re == nil {
			return nil
		}

		loc := re.FindStringSubmatchIndex(segment)
		if loc == nil {
			continue
		}

		names := re.SubexpNames()
		for g := 1; g < len(names); g++ {
			start, end := loc[2*g], loc[2*g+1]
			if start < 0 || start == end {
				continue
			}
			if err := r.attachLabel(ctx, categoryID, segment[start:end], names[g]); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (r *Resolver) attachLabel(ctx context.Context, categoryID int64, name, metaType string) error {
	label, err := r.cfg.Labels.LoadByName(ctx, name, vfs.LabelNamespace)
	switch {
	case errors.Is(err, vfs.ErrNotFound):
		label = &vfs.Label{Name: name, Namespace: vfs.LabelNamespace, MetaType: metaType}
		if err := r.cfg.Labels.Save(ctx, label); err != nil {
			return fmt.Errorf("saving label %q: %w", name, err)
		}
	case err != nil:
		return fmt.Errorf("loading label %q: %w", name, err)
	case label.MetaType != metaType:
		label.MetaType = metaType
		if err := r.cfg.Labels.Save(ctx, label); err != nil {
			return fmt.Errorf("updating label %q: %w", name, err)
		}
	}

	if err := r.cfg.Labels.AttachToCategory(ctx, categoryID, label.ID, vfs.LabelCauseExtension); err != nil {
		return fmt.Errorf("attaching label %q to category %d: %w", name, categoryID, err)
	}
	metrics.LabelsAttachedTotal.Inc()
	logging.Debug("Label %q (%s) attached to category %d", name, metaType, categoryID)
	return nil
}

// materialize returns the child of parentID named name, creating it when absent.
func (r *Resolver) materialize(ctx context.Context, parentID int64, name string) (*vfs.Category, bool, error) {
	children, err := r.cfg.Categories.FindChildren(ctx, parentID)
	if err != nil {
		return nil, false, fmt.Errorf("listing children of category %d: %w", parentID, err)
	}
	for _, c := range children {
		if c.Name == name {
			return c, false, nil
		}
	}

	c := &vfs.Category{Name: name, ParentID: parentID}
	if err := r.cfg.Categories.Save(ctx, c); err != nil {
		return nil, false, fmt.Errorf("saving category %q: %w", name, err)
	}
	metrics.CategoriesCreatedTotal.Inc()
	logging.Info("Category %q created (id=%d, parent=%d)", name, c.ID, parentID)

	if r.cfg.Events != nil {
		entry := &vfs.EventLog{
			EventID:   vfs.EventRegisterContentVfsWatch,
			Sender:    eventSender,
			Message:   fmt.Sprintf("category (%s) registered", name),
			EventDate: r.now(),
		}
		if err := r.cfg.Events.Save(ctx, entry); err != nil {
			logging.Warn("Failed to write event log for category %q: %v", name, err)
		}
	}
	return c, true, nil
}

// rule loads and compiles rule i under prefix. ok is false when no rule is
// configured at that index. A malformed pattern is logged and returned as
// ok=true with a nil regexp, which ends the scan.
func (r *Resolver) rule(ctx context.Context, prefix string, i int, kind string) (*regexp.Regexp, bool, error) {
	key := fmt.Sprintf("%s%d", prefix, i)
	pattern, found, err := r.cfg.Settings.LoadByKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("loading rule %s: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !found {
		delete(r.compiled, key)
		return nil, false, nil
	}
	if re, ok := r.compiled[key]; ok && re.String() == pattern {
		return re, true, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		delete(r.compiled, key)
		metrics.ParserRuleErrors.WithLabelValues(kind).Inc()
		logging.Warn("Ignoring malformed %s rule %s %q: %v", kind, key, pattern, err)
		return nil, true, nil
	}
	r.compiled[key] = re
	return re, true, nil
}
