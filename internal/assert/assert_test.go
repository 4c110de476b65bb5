package assert

import "testing"

func TestLength(t *testing.T) {
	Length("ok", "abcd", 4)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for wrong length")
		}
	}()
	Length("bad", "abc", 4)
}

func TestMinLength(t *testing.T) {
	MinLength("ok", "abcdef", 4)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for short value")
		}
	}()
	MinLength("short", "ab", 4)
}
