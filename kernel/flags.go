package kernel

import (
	"fmt"
	"sort"
	"strings"
)

// Flags is a set of kernel feature toggles. The bitmask is the structural
// variant key: two distinct sets never share a cache entry.
type Flags uint8

const (
	// ManualFiltering replaces hardware bilinear sampling with a 4-tap
	// bilinear fetch for devices without linear filtering.
	ManualFiltering Flags = 1 << iota
	// Shading enables the pseudo-lighting relief in the display kernel.
	Shading

	// KnownFlags is the union of every flag a kernel may declare.
	KnownFlags = ManualFiltering | Shading
)

var flagNames = map[Flags]string{
	ManualFiltering: "MANUAL_FILTERING",
	Shading:         "SHADING",
}

// Has reports whether every flag in g is set in f.
func (f Flags) Has(g Flags) bool { return f&g == g }

// Defines returns the preprocessor names of the set flags, sorted.
func (f Flags) Defines() []string {
	var out []string
	for flag, name := range flagNames {
		if f.Has(flag) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	s := strings.Join(f.Defines(), "|")
	if unknown := f &^ KnownFlags; unknown != 0 {
		if s != "" {
			s += "|"
		}
		s += fmt.Sprintf("0x%02x", uint8(unknown))
	}
	return s
}

// ParseFlags maps define names back to a flag set.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, name := range names {
		found := false
		for flag, n := range flagNames {
			if n == name {
				f |= flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown kernel flag %q", name)
		}
	}
	return f, nil
}

// WithDefines prepends one #define line per set flag to src.
func WithDefines(src string, f Flags) string {
	var b strings.Builder
	for _, name := range f.Defines() {
		b.WriteString("#define ")
		b.WriteString(name)
		b.WriteByte('\n')
	}
	b.WriteString(src)
	return b.String()
}
