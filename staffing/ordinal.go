package staffing

import "strings"

// Ordinal is a row's hierarchical numbering, e.g. "1.2.3".
// The zero value marks a continuation row.
type Ordinal string

// ParseOrdinal trims whitespace and trailing dots ("1.2." -> "1.2").
func ParseOrdinal(s string) Ordinal {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimRight(s, ".")
	return Ordinal(s)
}

func (o Ordinal) String() string { return string(o) }

func (o Ordinal) IsZero() bool { return o == "" }

// Parent drops the last segment: "1.2.3" -> "1.2", "1" -> "".
func (o Ordinal) Parent() Ordinal {
	i := strings.LastIndex(string(o), ".")
	if i < 0 {
		return ""
	}
	return o[:i]
}
