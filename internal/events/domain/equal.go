package events

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Equal reports whether two events match field for field, payload included.
// Nil and empty collections compare equal so a decoded event matches its source.
func Equal(a, b Event) bool {
	return cmp.Equal(a.Normalize(), b.Normalize(), cmpopts.EquateEmpty())
}
