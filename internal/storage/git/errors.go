package git

import "errors"

// Errors returned by the object store. They are always wrapped with context;
// test for them with errors.Is.
var (
	// ErrNotFound is returned for a missing branch, path segment or object.
	ErrNotFound = errors.New("not found")
	// ErrTypeMismatch is returned when a blob was expected and a tree found, or vice versa.
	ErrTypeMismatch = errors.New("object type mismatch")
	// ErrConflict is returned when a patch puts a blob where a tree lives, or the reverse.
	ErrConflict = errors.New("path conflict")
	// ErrCorruptObject is returned when stored object bytes fail to decode.
	ErrCorruptObject = errors.New("corrupt object")
	// ErrRefConflict is returned when a branch moved while a commit was being made.
	ErrRefConflict = errors.New("branch moved concurrently")
	// ErrSignature is returned when an author cannot be encoded in a commit signature.
	ErrSignature = errors.New("invalid signature")
	// ErrStorage is returned when the repository cannot be read or written.
	ErrStorage = errors.New("storage failure")
	// ErrInvalidPath is returned for malformed paths or revision specs.
	ErrInvalidPath = errors.New("invalid path")
)
