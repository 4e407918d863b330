// Package atcerr collects the error kinds named by the core's error
// handling design: one typed value per kind, compared with errors.Is/As,
// grouped here the way the teacher keeps one error-kind file per layer.
package atcerr

import "fmt"

// NotFound reports a missing blob, branch, or remote.
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func NewNotFound(kind, id string) error { return &NotFound{Kind: kind, ID: id} }

// MalformedObject reports a canonical codec rejection.
type MalformedObject struct {
	Kind   string
	Detail string
}

func (e *MalformedObject) Error() string {
	return fmt.Sprintf("malformed %s object: %s", e.Kind, e.Detail)
}

func NewMalformedObject(kind, detail string) error {
	return &MalformedObject{Kind: kind, Detail: detail}
}

// DigestMismatch is an fsck finding: the stored digest and the recomputed
// digest for the same blob disagree.
type DigestMismatch struct {
	Expected fmt.Stringer
	Actual   fmt.Stringer
}

func (e *DigestMismatch) Error() string {
	return fmt.Sprintf("digest mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// ErrCompareFailed reports a lost branch-set compare-and-swap race.
var ErrCompareFailed = fmt.Errorf("branch set compare-and-swap failed")

// UnsupportedDigest reports a backend that cannot serve a requested digest
// scheme.
type UnsupportedDigest struct {
	Name string
}

func (e *UnsupportedDigest) Error() string { return fmt.Sprintf("unsupported digest scheme %q", e.Name) }

// UnsupportedScheme reports a URL with no matching backend.
type UnsupportedScheme struct {
	URL string
}

func (e *UnsupportedScheme) Error() string { return fmt.Sprintf("no backend for URL scheme %q", e.URL) }

// FileChangedDuringHash reports a cache resolve that observed a
// modification mid-hash.
type FileChangedDuringHash struct {
	Path string
}

func (e *FileChangedDuringHash) Error() string {
	return fmt.Sprintf("file changed during hash: %s", e.Path)
}

func NewFileChangedDuringHash(path string) error { return &FileChangedDuringHash{Path: path} }

// InvariantViolation reports an internal assertion failure.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string { return fmt.Sprintf("invariant violation: %s", e.Detail) }

func NewInvariantViolation(format string, a ...any) error {
	return &InvariantViolation{Detail: fmt.Sprintf(format, a...)}
}

// Io wraps an underlying transport failure with its own kind tag so callers
// can distinguish it from the other sentinel kinds via errors.As.
type Io struct {
	Detail string
	Cause  error
}

func (e *Io) Error() string { return fmt.Sprintf("io: %s: %v", e.Detail, e.Cause) }
func (e *Io) Unwrap() error { return e.Cause }

func NewIo(detail string, cause error) error { return &Io{Detail: detail, Cause: cause} }
