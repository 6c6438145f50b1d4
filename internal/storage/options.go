package storage

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/istore/internal/fault"
)

// Mode controls how a storage may be used.
type Mode string

const (
	// ModeUnset means the caller did not choose; see WithDefaultMode.
	ModeUnset Mode = ""

	// ModeRead opens an existing storage read-only.
	ModeRead Mode = "r"

	// ModeWrite truncates the storage and allows overwriting entities.
	ModeWrite Mode = "w"

	// ModeAppend keeps existing content and refuses to overwrite entities.
	ModeAppend Mode = "a"
)

// Options is the parsed form of an option string such as
// "mode=w;arrays=false".
type Options struct {
	// Mode is r, w or a.
	Mode Mode

	// Arrays writes metadata dimensions and properties as lists of
	// objects instead of name-keyed mappings.
	Arrays bool

	// Single forces the single-entity (true) or multi-entity (false)
	// document layout. Nil lets the driver decide.
	Single *bool

	// Compact disables indentation in text formats.
	Compact bool

	// ID selects an entity. A URL fragment takes precedence over it.
	ID string

	// Extra holds driver-specific keys, validated by the driver.
	Extra map[string]string
}

// ParseOptions parses key=value pairs separated by ';' or '&'.
// Empty pairs are skipped. A pair without '=' is an error.
func ParseOptions(s string) (Options, error) {
	var opts Options
	pairs := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '&' })
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return Options{}, fault.New(fault.InvalidInput, "option must be key=value", pair)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "mode":
			err = opts.setMode(value)
		case "arrays":
			opts.Arrays, err = parseBool(key, value)
		case "single":
			var b bool
			b, err = parseBool(key, value)
			opts.Single = &b
		case "compact":
			opts.Compact, err = parseBool(key, value)
		case "id":
			opts.ID = value
		default:
			if opts.Extra == nil {
				opts.Extra = make(map[string]string)
			}
			opts.Extra[key] = value
		}
		if err != nil {
			return Options{}, err
		}
	}
	return opts, nil
}

func (o *Options) setMode(v string) error {
	switch Mode(strings.ToLower(v)) {
	case ModeRead, ModeWrite, ModeAppend:
		o.Mode = Mode(strings.ToLower(v))
		return nil
	default:
		return fault.New(fault.InvalidInput, "mode must be one of r, w, a", v)
	}
}

func parseBool(key, v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fault.New(fault.InvalidInput, "option "+key+" must be a boolean", v)
	}
	return b, nil
}

// WithDefaultMode returns a copy of o whose Mode is m if none was given.
func (o Options) WithDefaultMode(m Mode) Options {
	if o.Mode == ModeUnset {
		o.Mode = m
	}
	return o
}

// Selector returns the entity id to select: the fragment when non-empty,
// otherwise the id option.
func (o Options) Selector(fragment string) string {
	if fragment != "" {
		return fragment
	}
	return o.ID
}

// CheckExtra rejects driver-specific keys not in allowed.
func (o Options) CheckExtra(driver string, allowed ...string) error {
	for key := range o.Extra {
		if !slices.Contains(allowed, key) {
			return fault.New(fault.InvalidInput, "unknown option for "+driver+" storage", key)
		}
	}
	return nil
}

// String renders the options back to "key=value;..." form with keys in a
// fixed order.
func (o Options) String() string {
	var parts []string
	if o.Mode != ModeUnset {
		parts = append(parts, "mode="+string(o.Mode))
	}
	if o.Arrays {
		parts = append(parts, "arrays=true")
	}
	if o.Single != nil {
		parts = append(parts, "single="+strconv.FormatBool(*o.Single))
	}
	if o.Compact {
		parts = append(parts, "compact=true")
	}
	if o.ID != "" {
		parts = append(parts, "id="+o.ID)
	}
	keys := make([]string, 0, len(o.Extra))
	for k := range o.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+o.Extra[k])
	}
	return strings.Join(parts, ";")
}

// CheckWritable decides whether an entity may be saved under the given
// mode. exists reports whether the target already holds the entity.
func CheckWritable(mode Mode, exists bool, subject string) error {
	switch mode {
	case ModeRead:
		return fault.New(fault.StorageIO, "storage is opened read-only", subject)
	case ModeWrite:
		return nil
	default:
		if exists {
			return fault.New(fault.ImmutableTarget, "entity already stored, use mode=w to overwrite", subject)
		}
		return nil
	}
}
