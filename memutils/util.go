package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uintptr
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// CheckAlignment verifies that alignment is usable for an allocation request: it must be
// non-zero and a power of two.
func CheckAlignment[T Number](alignment T) error {
	if alignment == 0 {
		return cerrors.Wrap(ErrInvalidAlignment, "alignment is 0")
	}

	err := CheckPow2(alignment, "alignment")
	if err != nil {
		return cerrors.Wrapf(ErrInvalidAlignment, "%v", err)
	}
	return nil
}

func AlignUp[T Number](value T, alignment T) T {
	return (value + alignment - 1) & ^(alignment - 1)
}

// AlignPadding returns the number of bytes that must be skipped from value to reach the
// next multiple of alignment. It is 0 when value is already aligned.
func AlignPadding[T Number](value T, alignment T) T {
	return AlignUp(value, alignment) - value
}

func Min[T Number](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T Number](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Validatable is anything that can check its own consistency. DebugValidate calls Validate
// in debug builds.
type Validatable interface {
	Validate() error
}
