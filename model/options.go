package model

import (
	"math"
	"reflect"
	"sort"
	"strings"
)

// RawOptions are caller options before defaults are merged in.
type RawOptions map[string]any

// Options are resolved, validated conversion options.
type Options struct {
	// NoticeLevel is the lowest notice tier that is recorded:
	// 1 debug, 2 info, 3 warning, 4 error only.
	NoticeLevel int
}

const (
	KeyNoticeLevel = "noticeLevel"

	MinNoticeLevel = 1
	MaxNoticeLevel = 4

	// DefaultNoticeLevel reports info, warnings and errors.
	DefaultNoticeLevel = 2
)

var knownKeys = map[string]struct{}{
	KeyNoticeLevel: {},
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	return Options{NoticeLevel: DefaultNoticeLevel}
}

// Resolver merges raw options over a set of defaults.
type Resolver struct {
	Func     string
	Defaults Options
}

// NewResolver returns a resolver filling absent fields from defaults. The
// defaults themselves must be valid.
func NewResolver(defaults Options) (*Resolver, error) {
	r := &Resolver{Func: "ResolveOptions", Defaults: defaults}
	if err := defaults.Validate(r.Func); err != nil {
		return nil, err
	}
	return r, nil
}

// ResolveOptions resolves raw against the built-in defaults.
func ResolveOptions(raw any) (Options, error) {
	r := &Resolver{Func: "ResolveOptions", Defaults: DefaultOptions()}
	return r.Resolve(raw)
}

// Validate checks the merged record.
func (o Options) Validate(fn string) error {
	if o.NoticeLevel < MinNoticeLevel || o.NoticeLevel > MaxNoticeLevel {
		return argErr(fn, "options."+KeyNoticeLevel, RuleInvalidValue,
			"must be an integer in [1, 4], got %d", o.NoticeLevel)
	}
	return nil
}

// Resolve accepts a keyed record (RawOptions or map[string]any). nil, slices,
// arrays and every other type are rejected, as are unknown keys.
func (r *Resolver) Resolve(raw any) (Options, error) {
	fn := r.Func
	var rec map[string]any
	switch t := raw.(type) {
	case nil:
		return Options{}, argErr(fn, "options", RuleType, "must be a keyed record, got null")
	case RawOptions:
		rec = t
	case map[string]any:
		rec = t
	default:
		k := reflect.TypeOf(raw).Kind()
		if k == reflect.Slice || k == reflect.Array {
			return Options{}, argErr(fn, "options", RuleType, "must be a keyed record, got an array (%s)", typeName(raw))
		}
		return Options{}, argErr(fn, "options", RuleType, "must be a keyed record, got %s", typeName(raw))
	}
	if rec == nil {
		return Options{}, argErr(fn, "options", RuleType, "must be a keyed record, got null")
	}

	var unknown []string
	for k := range rec {
		if _, ok := knownKeys[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Options{}, argErr(fn, "options", RuleUnknownKey, "has unrecognized key(s): %s", strings.Join(unknown, ", "))
	}

	opts := r.Defaults
	if v, ok := rec[KeyNoticeLevel]; ok {
		lvl, ok := asInt(v)
		if !ok {
			return Options{}, argErr(fn, "options."+KeyNoticeLevel, RuleInvalidValue,
				"must be an integer in [1, 4], got %s", typeName(v))
		}
		opts.NoticeLevel = lvl
	}
	if err := opts.Validate(fn); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// asInt converts integer kinds, and floats with no fractional part as produced
// by JSON and YAML decoders.
func asInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) || f < math.MinInt32 || f > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}
