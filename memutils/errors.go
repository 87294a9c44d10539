package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

var (
	// ErrOutOfMemory is returned when the managed region cannot be extended to satisfy an allocation
	ErrOutOfMemory = errors.New("out of memory")
	// ErrInvalidSize is returned when an allocation of zero bytes is requested
	ErrInvalidSize = errors.New("allocation size must be greater than zero")
	// ErrInvalidAlignment is returned when a requested alignment is zero or not a power of two
	ErrInvalidAlignment = errors.New("alignment must be a non-zero power of two")
)

// ErrSegmentMoved is returned when a segment grows from a different address than the end it
// reported just before, and the new space cannot hold the aligned request
var ErrSegmentMoved = errors.New("segment end moved during growth")
