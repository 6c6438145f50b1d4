package storage

import (
	"path/filepath"
	"strings"

	"github.com/roach88/istore/internal/fault"
)

// URL is a parsed storage address of the form
//
//	<driver>://<location>[?<options>][#<id>]
//
// A bare path without a scheme selects the driver from its extension.
type URL struct {
	Driver   string
	Location string
	Options  string
	Fragment string
}

// extensions maps file extensions to driver names for bare paths.
var extensions = map[string]string{
	".json":   "json",
	".yaml":   "yaml",
	".yml":    "yaml",
	".db":     "sqlite",
	".sqlite": "sqlite",
}

// ParseURL splits raw into its driver, location, options and fragment.
//
// For http and https the location is the full URL up to the fragment and
// the query is left in place; driver options for those schemes must be
// passed separately.
func ParseURL(raw string) (URL, error) {
	if strings.TrimSpace(raw) == "" {
		return URL{}, fault.New(fault.InvalidInput, "empty storage url", "")
	}

	rest, fragment, _ := strings.Cut(raw, "#")
	u := URL{Fragment: fragment}

	scheme, location, ok := strings.Cut(rest, "://")
	if ok && isScheme(scheme) {
		u.Driver = strings.ToLower(scheme)
		if u.Driver == "http" || u.Driver == "https" {
			u.Location = rest
			return u, nil
		}
		u.Location, u.Options, _ = strings.Cut(location, "?")
		return u, nil
	}

	u.Location, u.Options, _ = strings.Cut(rest, "?")
	driver, err := DriverForPath(u.Location)
	if err != nil {
		return URL{}, err
	}
	u.Driver = driver
	return u, nil
}

// DriverForPath infers the driver name from the extension of path.
func DriverForPath(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if driver, ok := extensions[ext]; ok {
		return driver, nil
	}
	return "", fault.New(fault.UnsupportedScheme, "cannot infer storage driver from path", path)
}

// String reassembles the URL.
func (u URL) String() string {
	var sb strings.Builder
	if u.Driver == "http" || u.Driver == "https" {
		sb.WriteString(u.Location)
	} else {
		sb.WriteString(u.Driver)
		sb.WriteString("://")
		sb.WriteString(u.Location)
		if u.Options != "" {
			sb.WriteByte('?')
			sb.WriteString(u.Options)
		}
	}
	if u.Fragment != "" {
		sb.WriteByte('#')
		sb.WriteString(u.Fragment)
	}
	return sb.String()
}

// isScheme reports whether s is a valid RFC 3986 scheme of at least two
// characters, so that Windows drive letters are not taken for schemes.
func isScheme(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}
