// Package assert holds invariant checks that panic on programmer error.
package assert

import (
	"fmt"
)

// Length panics unless value is exactly expected bytes long
func Length(name, value string, expected int) {
	if len(value) != expected {
		panic(fmt.Sprintf("assert.Length: %s expected %d bytes, got %d", name, expected, len(value)))
	}
}

// MinLength panics if value is shorter than min bytes
func MinLength(name, value string, min int) {
	if len(value) < min {
		panic(fmt.Sprintf("assert.MinLength: %s expected at least %d bytes, got %d", name, min, len(value)))
	}
}
