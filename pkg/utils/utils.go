package utils

import (
	"fmt"
	"os"
	"runtime/debug"
)

// Fatal is for cmd/rvld only: it reports an unrecoverable CLI-level
// error and terminates the process. The core packages never call this;
// they return *errs.E instead (see pkg/errs).
func Fatal(v any) {
	fmt.Printf("rvld:\n\t\033[0;1;31mfatal\033[0m: %v\n", v)
	debug.PrintStack()
	os.Exit(1)
}

// Assert panics on an internal invariant violation. It must never be
// reachable from caller-supplied input; those conditions are reported
// through pkg/errs instead.
func Assert(condition bool) {
	if !condition {
		panic("assertion failed")
	}
}

// AlignTo rounds value up to the next multiple of alignment, which must
// be a power of two.
func AlignTo(value, alignment uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// RemoveIf compacts elems in place, dropping every element for which
// condition holds, and returns the shortened slice.
func RemoveIf[T any](elems []T, condition func(T) bool) []T {
	i := 0
	for _, elem := range elems {
		if condition(elem) {
			continue
		}
		elems[i] = elem
		i++
	}
	return elems[:i]
}
