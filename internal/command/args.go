package command

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	tripleRe = regexp.MustCompile(`(\w+)\s*=\s*"""([\s\S]*?)"""`)
	doubleRe = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
	singleRe = regexp.MustCompile(`(\w+)\s*=\s*'([^']*)'`)
	bareRe   = regexp.MustCompile(`(\w+)=([^\s"']+)`)
)

// Args is the key=value view of a command's raw args string.
type Args map[string]string

// ParseArgs reads key="""multi-line""", key="value", key='value' and bare
// key=value pairs. Triple-quoted values are captured first and cut out of the
// input so their contents are not parsed again. Tokens that match none of
// these forms are ignored.
func ParseArgs(raw string) Args {
	out := make(Args)
	rest := raw
	for _, re := range []*regexp.Regexp{tripleRe, doubleRe, singleRe, bareRe} {
		for _, m := range re.FindAllStringSubmatch(rest, -1) {
			out[m[1]] = m[2]
		}
		rest = re.ReplaceAllString(rest, " ")
	}
	return out
}

func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// String returns the raw value for key, or "" when absent.
func (a Args) String(key string) string {
	return a[key]
}

// Int returns the value for key as an int.
func (a Args) Int(key string) (int, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Bool returns the value for key as a bool.
func (a Args) Bool(key string) (bool, bool) {
	v, ok := a[key]
	if !ok {
		return false, false
	}
	b, isBool := Coerce(v).(bool)
	return b, isBool
}

// Typed returns every value passed through Coerce.
func (a Args) Typed() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = Coerce(v)
	}
	return out
}

// Coerce converts literal-looking values to int64, float64, bool or nil.
// Anything else is returned unchanged.
func Coerce(s string) any {
	t := strings.TrimSpace(s)
	switch t {
	case "true", "True":
		return true
	case "false", "False":
		return false
	case "None", "null", "nil":
		return nil
	}
	if n, err := strconv.ParseInt(t, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && strings.ContainsAny(t, "0123456789") {
		return f
	}
	return s
}
