package readtool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atinylittleshell/pageread/internal/backend"
	"github.com/atinylittleshell/pageread/internal/pathutil"
)

// Kind classifies a failed read so the caller can decide what to do next.
type Kind string

const (
	KindInvalidPath      Kind = "invalid_path"
	KindInvalidRequest   Kind = "invalid_request"
	KindNotReadable      Kind = "not_readable"
	KindOffsetOutOfRange Kind = "offset_out_of_range"
	KindCancelled        Kind = "cancelled"
	KindIO               Kind = "io_error"
)

var (
	ErrInvalidPath      = pathutil.ErrInvalidPath
	ErrNotReadable      = backend.ErrNotReadable
	ErrInvalidRequest   = errors.New("invalid request")
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrCancelled        = errors.New("operation aborted")
	ErrIO               = errors.New("i/o error")
)

var sentinels = map[Kind]error{
	KindInvalidPath:      ErrInvalidPath,
	KindInvalidRequest:   ErrInvalidRequest,
	KindNotReadable:      ErrNotReadable,
	KindOffsetOutOfRange: ErrOffsetOutOfRange,
	KindCancelled:        ErrCancelled,
	KindIO:               ErrIO,
}

// Error is returned by Reader.Read for every failure.
type Error struct {
	Kind Kind
	// Path is the path as the caller supplied it.
	Path string
	// Offset and TotalLines are set for KindOffsetOutOfRange.
	Offset     int
	TotalLines int
	// Suggestions holds similarly named files for KindNotReadable, when known.
	Suggestions []string
	Err         error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindOffsetOutOfRange:
		return fmt.Sprintf("Offset %d is beyond end of file (%d lines total)", e.Offset, e.TotalLines)
	case KindCancelled:
		return "Operation aborted"
	case KindNotReadable:
		msg := fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
		if len(e.Suggestions) > 0 {
			msg += fmt.Sprintf(". Did you mean: %s?", strings.Join(e.Suggestions, ", "))
		}
		return msg
	case KindInvalidPath:
		return fmt.Sprintf("invalid path %q: %v", e.Path, e.Err)
	case KindIO:
		return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf returns the kind of err, or "" if err did not come from a read.
func KindOf(err error) Kind {
	var readErr *Error
	if errors.As(err, &readErr) {
		return readErr.Kind
	}
	return ""
}

func cancelled(path string, cause error) *Error {
	return &Error{Kind: KindCancelled, Path: path, Err: cause}
}
