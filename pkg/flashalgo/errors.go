package flashalgo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotLoaded is returned when an entry point is called before Load.
	ErrNotLoaded = errors.New("flashalgo: algorithm not loaded")
	// ErrUnaligned is returned for program addresses that are not page aligned.
	ErrUnaligned = errors.New("flashalgo: address not page aligned")
)

// ValidationError lists every inconsistency found in a Descriptor.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid flash algorithm: " + strings.Join(e.Problems, "; ")
}

// AlgoError is a non-zero result returned by an algorithm entry point.
type AlgoError struct {
	Entry Entry
	Addr  uint32
	Code  uint32
}

func (e *AlgoError) Error() string {
	return fmt.Sprintf("%s(0x%08X) returned %d", e.Entry, e.Addr, e.Code)
}

// VerifyError reports a payload read-back mismatch after Load.
type VerifyError struct {
	Addr      uint32
	Want, Got uint32
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("algorithm verify failed at 0x%08X: wrote 0x%08X, read 0x%08X", e.Addr, e.Want, e.Got)
}
