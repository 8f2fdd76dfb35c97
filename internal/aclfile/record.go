package aclfile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// Magic identifies a sidecar file.
	Magic = "ACLGENE"

	// CurrentVersion is the record version written by this package.
	CurrentVersion int32 = 1

	// KeyHash is the data key holding the file's identity hash.
	KeyHash = "ACLHASH"
)

// Field numbers of the sidecar message.
const (
	fieldMagic      protowire.Number = 1
	fieldVersion    protowire.Number = 2
	fieldLastUpdate protowire.Number = 3
	fieldData       protowire.Number = 4

	fieldSeconds protowire.Number = 1
	fieldNanos   protowire.Number = 2

	fieldKey   protowire.Number = 1
	fieldValue protowire.Number = 2
)

var (
	// ErrBadMagic is returned when the payload is not a sidecar record.
	ErrBadMagic = errors.New("aclfile: bad magic")

	// ErrUnsupportedVersion is returned for records newer than CurrentVersion.
	ErrUnsupportedVersion = errors.New("aclfile: unsupported version")

	// ErrNoHash is returned when a record carries no ACLHASH entry.
	ErrNoHash = errors.New("aclfile: record has no " + KeyHash)
)

// Pair is one key/value entry of a record.
type Pair struct {
	Key   string
	Value string
}

// Record is the decoded content of a sidecar file. Keys in Data are unique
// and keep their insertion order.
type Record struct {
	Magic      string
	Version    int32
	LastUpdate time.Time
	Data       []Pair
}

// New returns a current-version record holding hash.
func New(hash string, now time.Time) *Record {
	r := &Record{
		Magic:      Magic,
		Version:    CurrentVersion,
		LastUpdate: now.UTC(),
	}
	r.Set(KeyHash, hash)
	return r
}

// GenerateHash returns a new identity hash: a random UUID as 32 lowercase
// hex digits without separators.
func GenerateHash() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (string, bool) {
	for _, p := range r.Data {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Set stores value under key, replacing an existing entry in place.
func (r *Record) Set(key, value string) {
	for i := range r.Data {
		if r.Data[i].Key == key {
			r.Data[i].Value = value
			return
		}
	}
	r.Data = append(r.Data, Pair{Key: key, Value: value})
}

// Hash returns the record's identity hash.
func (r *Record) Hash() (string, error) {
	h, ok := r.Get(KeyHash)
	if !ok || h == "" {
		return "", ErrNoHash
	}
	return h, nil
}

// Marshal encodes the record in protobuf wire format.
func (r *Record) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldMagic, protowire.BytesType)
	b = protowire.AppendString(b, r.Magic)
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int64(r.Version)))

	if !r.LastUpdate.IsZero() {
		var ts []byte
		ts = protowire.AppendTag(ts, fieldSeconds, protowire.VarintType)
		ts = protowire.AppendVarint(ts, uint64(r.LastUpdate.Unix()))
		if nanos := r.LastUpdate.Nanosecond(); nanos != 0 {
			ts = protowire.AppendTag(ts, fieldNanos, protowire.VarintType)
			ts = protowire.AppendVarint(ts, uint64(int64(nanos)))
		}
		b = protowire.AppendTag(b, fieldLastUpdate, protowire.BytesType)
		b = protowire.AppendBytes(b, ts)
	}

	for _, p := range r.Data {
		var kv []byte
		kv = protowire.AppendTag(kv, fieldKey, protowire.BytesType)
		kv = protowire.AppendString(kv, p.Key)
		kv = protowire.AppendTag(kv, fieldValue, protowire.BytesType)
		kv = protowire.AppendString(kv, p.Value)
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, kv)
	}
	return b
}

// Unmarshal decodes a record and validates its magic and version. Unknown
// fields are skipped.
func Unmarshal(b []byte) (*Record, error) {
	r := &Record{}
	var seconds int64
	var nanos int32
	hasTime := false

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("aclfile: reading tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldMagic && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("aclfile: reading magic: %w", protowire.ParseError(n))
			}
			r.Magic = v
			b = b[n:]
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("aclfile: reading version: %w", protowire.ParseError(n))
			}
			r.Version = int32(v)
			b = b[n:]
		case num == fieldLastUpdate && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("aclfile: reading timestamp: %w", protowire.ParseError(n))
			}
			s, ns, err := unmarshalTimestamp(v)
			if err != nil {
				return nil, err
			}
			seconds, nanos, hasTime = s, ns, true
			b = b[n:]
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("aclfile: reading data entry: %w", protowire.ParseError(n))
			}
			p, err := unmarshalPair(v)
			if err != nil {
				return nil, err
			}
			r.Set(p.Key, p.Value)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("aclfile: skipping field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if r.Magic != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, r.Magic)
	}
	if r.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, r.Version)
	}
	if hasTime {
		r.LastUpdate = time.Unix(seconds, int64(nanos)).UTC()
	}
	return r, nil
}

func unmarshalTimestamp(b []byte) (int64, int32, error) {
	var seconds int64
	var nanos int32
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, 0, fmt.Errorf("aclfile: reading timestamp tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.VarintType && (num == fieldSeconds || num == fieldNanos) {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, 0, fmt.Errorf("aclfile: reading timestamp: %w", protowire.ParseError(n))
			}
			if num == fieldSeconds {
				seconds = int64(v)
			} else {
				nanos = int32(v)
			}
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return 0, 0, fmt.Errorf("aclfile: skipping timestamp field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return seconds, nanos, nil
}

func unmarshalPair(b []byte) (Pair, error) {
	var p Pair
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, fmt.Errorf("aclfile: reading entry tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.BytesType && (num == fieldKey || num == fieldValue) {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return p, fmt.Errorf("aclfile: reading entry: %w", protowire.ParseError(n))
			}
			if num == fieldKey {
				p.Key = v
			} else {
				p.Value = v
			}
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return p, fmt.Errorf("aclfile: skipping entry field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return p, nil
}
