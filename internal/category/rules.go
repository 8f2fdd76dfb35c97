package category

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// IsRuleKey reports whether key names a category or label rule slot.
func IsRuleKey(key string) bool {
	_, ok := ruleKind(key)
	return ok
}

func ruleKind(key string) (string, bool) {
	for _, p := range []struct{ prefix, kind string }{
		{CategoryNameRuleKey, "category"},
		{LabelNameRuleKey, "label"},
	} {
		rest, found := strings.CutPrefix(key, p.prefix)
		if !found {
			continue
		}
		i, err := strconv.Atoi(rest)
		if err != nil || i < 0 || i >= MaxParserRules || strconv.Itoa(i) != rest {
			return "", false
		}
		return p.kind, true
	}
	return "", false
}

// ValidateRule checks pattern before it is stored under a rule key. Keys that
// are not rule slots are accepted as is. Category rules must capture the
// CategoryName group; label rules only need to compile.
func ValidateRule(key, pattern string) error {
	kind, ok := ruleKind(key)
	if !ok {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid %s rule: %w", kind, err)
	}
	if kind == "category" && re.SubexpIndex(CategoryNameGroup) < 0 {
		return fmt.Errorf("category rule must define the (?P<%s>...) group", CategoryNameGroup)
	}
	return nil
}
