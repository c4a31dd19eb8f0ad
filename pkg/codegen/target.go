package codegen

import (
	"strings"
)

// Target is a parsed target descriptor such as "cuda -arch=sm_80 -mattr=+ptx".
type Target struct {
	Raw     string            // Descriptor as given by the caller
	Name    string            // Backend name: everything up to the first space
	Options map[string]string // -key=value flags after the name; bare -flag maps to ""
}

// ParseTarget splits a descriptor into its backend name and options
func ParseTarget(s string) Target {
	t := Target{Raw: s, Name: s, Options: map[string]string{}}

	pos := strings.IndexByte(s, ' ')
	if pos < 0 {
		return t
	}
	t.Name = s[:pos]

	for _, field := range strings.Fields(s[pos+1:]) {
		if !strings.HasPrefix(field, "-") {
			continue
		}
		key, value, _ := strings.Cut(strings.TrimLeft(field, "-"), "=")
		if key != "" {
			t.Options[key] = value
		}
	}
	return t
}

func (t Target) String() string {
	return t.Raw
}
