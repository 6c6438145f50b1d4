// Package fault defines the error taxonomy shared by every istore package.
//
// All recoverable failures are *Error values with a Kind. Callers branch on
// the kind with Is or KindOf; both see through fmt.Errorf("%w") wrapping.
//
// Only internal invariant violations (corrupted refcount, an offset outside
// a property buffer) are fatal. Invariant panics instead of returning.
package fault
