// Package mboxerr defines the error taxonomy this module's components raise
// to a caller. Most failures are recoverable per-message and are only
// logged (see internal/logging); mboxerr exists for the smaller set of
// failures that invalidate a whole operation and must reach the caller.
package mboxerr

import "fmt"

// Kind categorizes an Error so callers can branch with errors.As without
// string-matching messages.
type Kind int

const (
	// MissingArchive: the archive path does not exist.
	MissingArchive Kind = iota
	// ArchiveIO: any other filesystem failure reading the archive.
	ArchiveIO
	// NotAnArchive: the file was opened but contains no plausible separator.
	NotAnArchive
	// IndexStale: the on-disk index no longer matches its archive.
	IndexStale
	// IndexCorrupt: the on-disk index failed a structural check.
	IndexCorrupt
	// ParseLocal: a single header block could not be interpreted.
	ParseLocal
	// MIMEDecode: a message body could not be parsed as MIME.
	MIMEDecode
	// AttachmentNotFound: the requested attachment does not exist.
	AttachmentNotFound
	// Cancelled: a caller-supplied progress callback returned false.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case MissingArchive:
		return "missing archive"
	case ArchiveIO:
		return "archive I/O"
	case NotAnArchive:
		return "not an archive"
	case IndexStale:
		return "index stale"
	case IndexCorrupt:
		return "index corrupt"
	case ParseLocal:
		return "parse local"
	case MIMEDecode:
		return "MIME decode"
	case AttachmentNotFound:
		return "attachment not found"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by this module's public APIs.
type Error struct {
	Kind  Kind
	Path  string
	Cause error
}

func (e *Error) Error() string {
	if e.Path == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
		}
		return e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given kind. path and cause may be empty/nil.
func New(kind Kind, path string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Cause: cause}
}

// Is reports whether err is an *Error of the given kind, allowing
// errors.Is(err, mboxerr.New(mboxerr.Cancelled, "", nil)) style checks as
// well as the more common Kind comparison via errors.As.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
