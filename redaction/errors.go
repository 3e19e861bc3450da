package redaction

import "fmt"

// RemovalError reports that the removal primitive failed on a page. Pages
// before Page committed successfully; Page itself and everything after are
// unmodified. LastCommitted is -1 when no page committed.
type RemovalError struct {
	Page          int
	LastCommitted int
	Err           error
}

func (e *RemovalError) Error() string {
	return fmt.Sprintf("redaction: page %d failed (last committed page %d): %v",
		e.Page, e.LastCommitted, e.Err)
}

func (e *RemovalError) Unwrap() error { return e.Err }

// SaveError reports that the output destination was unwritable. The
// in-memory document state is unaffected; the caller may retry elsewhere.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("redaction: save %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
