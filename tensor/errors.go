package tensor

import (
	"fmt"
	"sort"
)

// MalformedFormError reports an index or structure error found while a form
// is assembled. Form is filled in by the caller that knows the form name.
type MalformedFormError struct {
	Form   string
	Index  Index
	Reason string
}

func (e *MalformedFormError) Error() string {
	msg := "malformed form"
	if e.Form != "" {
		msg += " " + e.Form
	}
	if e.Index != "" {
		msg += fmt.Sprintf(" (index %s)", e.Index)
	}
	return msg + ": " + e.Reason
}

func malformed(ix Index, format string, args ...interface{}) *MalformedFormError {
	return &MalformedFormError{Index: ix, Reason: fmt.Sprintf(format, args...)}
}

func sortedIndices(m map[Index]int) []Index {
	out := make([]Index, 0, len(m))
	for ix := range m {
		out = append(out, ix)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
