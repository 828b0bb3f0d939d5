package registry

import (
	"encoding/json"
	"errors"
	"math"
	"net/mail"
	"strconv"
	"strings"

	"github.com/ShayCichocki/taskflow/internal/toolerr"
)

// Me is the recipient shorthand for the configured owner inbox.
const Me = "me"

// Validate checks args against the named tool's parameters and returns a
// normalized copy: integers become int64, dates become YYYY-MM-DD and
// strings are trimmed. Absent required parameters fail with
// MissingParameter; everything else that does not fit fails with
// ValidationError naming the field.
func (r *Registry) Validate(name string, args map[string]any) (map[string]any, error) {
	d, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	for key := range args {
		if _, ok := d.Param(key); !ok {
			return nil, toolerr.Invalid(key, "%s does not take parameter %q", d.Name, key)
		}
	}

	out := make(map[string]any, len(args))
	for _, p := range d.Params {
		raw, present := args[p.Name]
		if !present || raw == nil || isBlank(raw) {
			if p.Required {
				return nil, toolerr.Missing(p.Name)
			}
			continue
		}

		v, err := r.coerce(p, raw)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	return out, nil
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func (r *Registry) coerce(p Param, raw any) (any, error) {
	switch p.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, toolerr.Invalid(p.Name, "expected a string, got %T", raw)
		}
		s = strings.TrimSpace(s)
		if len(p.Enum) > 0 && !contains(p.Enum, strings.ToLower(s)) {
			return nil, toolerr.Invalid(p.Name, "must be one of %s", strings.Join(p.Enum, ", "))
		}
		if len(p.Enum) > 0 {
			s = strings.ToLower(s)
		}
		return s, nil

	case TypeInteger:
		n, err := toInt64(raw)
		if errors.Is(err, errOutOfRange) {
			return nil, toolerr.Invalid(p.Name, "%v is out of range", raw)
		}
		if err != nil {
			return nil, toolerr.Invalid(p.Name, "expected an integer, got %v", raw)
		}
		if p.Min != nil && n < *p.Min {
			return nil, toolerr.Invalid(p.Name, "must be at least %d", *p.Min)
		}
		return n, nil

	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, toolerr.Invalid(p.Name, "expected true or false, got %q", v)
			}
			return b, nil
		}
		return nil, toolerr.Invalid(p.Name, "expected a boolean, got %T", raw)

	case TypeDate:
		s, ok := raw.(string)
		if !ok {
			return nil, toolerr.Invalid(p.Name, "expected a date string, got %T", raw)
		}
		d, err := r.dates.Parse(s)
		if err != nil {
			return nil, toolerr.Invalid(p.Name, "could not understand date %q", s)
		}
		return d.String(), nil

	case TypeEmail:
		s, ok := raw.(string)
		if !ok {
			return nil, toolerr.Invalid(p.Name, "expected an email address, got %T", raw)
		}
		s = strings.TrimSpace(s)
		if strings.EqualFold(s, Me) {
			return Me, nil
		}
		addr, err := mail.ParseAddress(s)
		if err != nil {
			return nil, toolerr.Invalid(p.Name, "%q is not a valid email address", s)
		}
		return addr.Address, nil
	}
	return nil, toolerr.Invalid(p.Name, "unsupported parameter type %q", p.Type)
}

var (
	errNotInteger = errors.New("not an integer")
	errOutOfRange = errors.New("out of range")
)

// toInt64 accepts the integer shapes that arrive from Go callers, JSON
// decoding (float64, json.Number) and language models (numeric strings).
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if math.IsNaN(n) || n != math.Trunc(n) {
			return 0, errNotInteger
		}
		// float64(math.MaxInt64) rounds up to 2^63.
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, errOutOfRange
		}
		return int64(n), nil
	case json.Number:
		return parseInt(string(n))
	case string:
		return parseInt(strings.TrimPrefix(strings.TrimSpace(n), "#"))
	}
	return 0, errNotInteger
}

func parseInt(s string) (int64, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, errOutOfRange
	}
	if err != nil {
		return 0, errNotInteger
	}
	return i, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
