package command

import (
	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/rational"
)

// str fetches a required non-empty string parameter.
func str(p Params, name, cmdName string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", &cmderr.MissingParameter{Command: cmdName, Field: name}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", &cmderr.MissingParameter{Command: cmdName, Field: name}
	}
	return s, nil
}

// optStr fetches an optional string parameter, returning "" if absent.
func optStr(p Params, name string) string {
	v, ok := p[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// strSlice fetches a []string parameter (also accepting []any of strings).
func strSlice(p Params, name string) []string {
	v, ok := p[name]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// rt hydrates a required rational.Time parameter at the given default rate.
func rt(p Params, name string, defNum, defDen uint32, cmdName string) (rational.Time, error) {
	v, ok := p[name]
	if !ok {
		return rational.Time{}, &cmderr.MissingParameter{Command: cmdName, Field: name}
	}
	return rational.Hydrate(v, defNum, defDen)
}

// optRT hydrates an optional rational.Time parameter.
func optRT(p Params, name string, defNum, defDen uint32) (*rational.Time, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return nil, nil
	}
	t, err := rational.Hydrate(v, defNum, defDen)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// boolean fetches a bool parameter, defaulting to def when absent.
func boolean(p Params, name string, def bool) bool {
	v, ok := p[name]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
