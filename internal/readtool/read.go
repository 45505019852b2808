// Package readtool implements the paginated, cancellable file read used by the agent.
package readtool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/atinylittleshell/pageread/internal/backend"
	"github.com/atinylittleshell/pageread/internal/pathutil"
	"github.com/atinylittleshell/pageread/internal/truncate"
	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"
	"mvdan.cc/sh/v3/syntax"
)

const maxSuggestions = 3

// Request is a single read. Offset is the 1-indexed line to start from and Limit the
// maximum number of lines to return; both are optional.
type Request struct {
	Path   string `json:"path"`
	Offset *int   `json:"offset,omitempty"`
	Limit  *int   `json:"limit,omitempty"`
}

// Outcome is what a successful read hands back to the caller.
type Outcome struct {
	// Text is the content plus, when applicable, the continuation notice.
	Text string `json:"text"`
	// Notice is the continuation notice on its own, or the placeholder that replaced
	// the content when the first line was too large.
	Notice string `json:"notice,omitempty"`
	// NextOffset is the offset to pass on the next call to continue, or 0 if the
	// read reached the end of the requested range.
	NextOffset int `json:"nextOffset,omitempty"`
	// OutputLines is the number of file lines included in Text.
	OutputLines int `json:"outputLines"`
	TotalLines  int `json:"totalLines"`
	// Truncation is set whenever the line or byte cap cut the output.
	Truncation *truncate.Result `json:"truncation,omitempty"`
}

// Event describes one Read invocation for a Recorder.
type Event struct {
	Path         string
	ResolvedPath string
	Offset       int
	Limit        int
	Kind         Kind
	TruncatedBy  truncate.By
	OutputLines  int
	TotalLines   int
	NextOffset   int
	Duration     time.Duration
}

// Recorder receives an Event after every Read.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Options configures a Reader.
type Options struct {
	// Backend provides raw file access. Defaults to the local filesystem.
	Backend backend.Backend
	Logger  *zap.Logger
	// MaxLines and MaxBytes cap every read. Default to truncate.DefaultMaxLines and
	// truncate.DefaultMaxBytes.
	MaxLines int
	MaxBytes int
	Recorder Recorder
}

// Reader reads files relative to a working directory.
// It holds no per-call state and is safe for concurrent use.
type Reader struct {
	cwd      string
	backend  backend.Backend
	logger   *zap.Logger
	maxLines int
	maxBytes int
	recorder Recorder
}

// New creates a Reader resolving relative paths against cwd.
func New(cwd string, opts Options) *Reader {
	r := &Reader{
		cwd:      cwd,
		backend:  opts.Backend,
		logger:   opts.Logger,
		maxLines: opts.MaxLines,
		maxBytes: opts.MaxBytes,
		recorder: opts.Recorder,
	}
	if r.backend == nil {
		r.backend = backend.NewLocal()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.maxLines <= 0 {
		r.maxLines = truncate.DefaultMaxLines
	}
	if r.maxBytes <= 0 {
		r.maxBytes = truncate.DefaultMaxBytes
	}
	return r
}

// MaxLines returns the line cap applied to every read.
func (r *Reader) MaxLines() int { return r.maxLines }

// MaxBytes returns the byte cap applied to every read.
func (r *Reader) MaxBytes() int { return r.maxBytes }

// Read resolves req.Path, reads it through the backend and returns at most MaxLines lines
// and MaxBytes bytes starting at req.Offset. Truncated or limited output ends with a
// notice naming the offset to continue from.
//
// ctx cancels the read. A read cancelled at any point, including after the data has
// been read, fails with KindCancelled and never returns content.
func (r *Reader) Read(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	resolved, outcome, err := r.read(ctx, req)
	r.record(ctx, req, resolved, outcome, err, time.Since(start))

	if err != nil {
		r.logger.Debug("read failed",
			zap.String("path", req.Path),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))
		return nil, err
	}

	if outcome.Truncation != nil {
		r.logger.Info("read truncated",
			zap.String("path", resolved),
			zap.String("truncatedBy", string(outcome.Truncation.TruncatedBy)),
			zap.Bool("firstLineExceedsLimit", outcome.Truncation.FirstLineExceedsLimit),
			zap.Int("nextOffset", outcome.NextOffset))
	} else {
		r.logger.Debug("read file",
			zap.String("path", resolved),
			zap.Int("totalLines", outcome.TotalLines))
	}
	return outcome, nil
}

func (r *Reader) read(ctx context.Context, req Request) (string, *Outcome, error) {
	if req.Limit != nil && *req.Limit < 1 {
		return "", nil, &Error{
			Kind: KindInvalidRequest,
			Path: req.Path,
			Err:  fmt.Errorf("%w: limit must be at least 1, got %d", ErrInvalidRequest, *req.Limit),
		}
	}

	absPath, err := pathutil.ResolveReadPath(req.Path, r.cwd)
	if err != nil {
		return "", nil, &Error{Kind: KindInvalidPath, Path: req.Path, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return absPath, nil, cancelled(req.Path, err)
	}

	found, err := await(ctx, func() (string, error) {
		return r.access(ctx, absPath)
	})
	if err != nil {
		if ctx.Err() != nil {
			return absPath, nil, cancelled(req.Path, ctx.Err())
		}
		return absPath, nil, &Error{
			Kind:        KindNotReadable,
			Path:        req.Path,
			Suggestions: r.suggest(ctx, absPath),
			Err:         err,
		}
	}
	absPath = found

	data, err := await(ctx, func() ([]byte, error) {
		return r.backend.ReadFile(ctx, absPath)
	})
	if err != nil {
		if ctx.Err() != nil {
			return absPath, nil, cancelled(req.Path, ctx.Err())
		}
		return absPath, nil, &Error{Kind: KindIO, Path: req.Path, Err: err}
	}

	outcome, err := r.paginate(req, string(bytes.ToValidUTF8(data, []byte("\uFFFD"))))
	outcome, err = settle(ctx, req.Path, outcome, err)
	return absPath, outcome, err
}

// access checks absPath and then its alternate spellings, returning the first readable one.
func (r *Reader) access(ctx context.Context, absPath string) (string, error) {
	var firstErr error
	for _, candidate := range pathutil.Variants(absPath) {
		err := r.backend.Access(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil || !errors.Is(err, backend.ErrNotReadable) {
			break
		}
	}
	return absPath, firstErr
}

func (r *Reader) suggest(ctx context.Context, absPath string) []string {
	lister, ok := r.backend.(backend.Lister)
	if !ok {
		return nil
	}
	names, err := lister.ListDir(ctx, filepath.Dir(absPath))
	if err != nil {
		return nil
	}

	base := filepath.Base(absPath)
	matches := fuzzy.Find(base, names)
	suggestions := make([]string, 0, maxSuggestions)
	for _, match := range matches {
		if match.Str == base {
			continue
		}
		suggestions = append(suggestions, match.Str)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions
}

func (r *Reader) paginate(req Request, text string) (*Outcome, error) {
	allLines := strings.Split(text, "\n")
	totalLines := len(allLines)

	startLine := 0
	if req.Offset != nil && *req.Offset > 1 {
		startLine = *req.Offset - 1
	}
	if startLine >= totalLines {
		return nil, &Error{
			Kind:       KindOffsetOutOfRange,
			Path:       req.Path,
			Offset:     *req.Offset,
			TotalLines: totalLines,
			Err:        ErrOffsetOutOfRange,
		}
	}
	startDisplay := startLine + 1

	endLine := totalLines
	if req.Limit != nil {
		if rem := totalLines - startLine; *req.Limit < rem {
			endLine = startLine + *req.Limit
		}
	}
	selected := strings.Join(allLines[startLine:endLine], "\n")

	tr := truncate.Head(selected, r.maxLines, r.maxBytes)
	outcome := &Outcome{TotalLines: totalLines, OutputLines: tr.OutputLines}

	switch {
	case tr.FirstLineExceedsLimit:
		outcome.Notice = fmt.Sprintf("[Line %d is %s, exceeds %s limit. Use bash: sed -n '%dp' %s | head -c %d]",
			startDisplay,
			truncate.FormatSize(len(allLines[startLine])),
			truncate.FormatSize(r.maxBytes),
			startDisplay,
			shellQuote(req.Path),
			r.maxBytes)
		outcome.Text = outcome.Notice
		outcome.Truncation = &tr

	case tr.Truncated:
		endDisplay := startDisplay + tr.OutputLines - 1
		outcome.NextOffset = endDisplay + 1
		if tr.TruncatedBy == truncate.ByLines {
			outcome.Notice = fmt.Sprintf("[Showing lines %d-%d of %d. Use offset=%d to continue.]",
				startDisplay, endDisplay, totalLines, outcome.NextOffset)
		} else {
			outcome.Notice = fmt.Sprintf("[Showing lines %d-%d of %d (%s limit). Use offset=%d to continue.]",
				startDisplay, endDisplay, totalLines, truncate.FormatSize(r.maxBytes), outcome.NextOffset)
		}
		outcome.Text = tr.Content + "\n\n" + outcome.Notice
		outcome.Truncation = &tr

	case endLine < totalLines:
		outcome.NextOffset = endLine + 1
		outcome.Notice = fmt.Sprintf("[%d more lines in file. Use offset=%d to continue.]",
			totalLines-endLine, outcome.NextOffset)
		outcome.Text = tr.Content + "\n\n" + outcome.Notice

	default:
		outcome.Text = tr.Content
	}

	return outcome, nil
}

func shellQuote(path string) string {
	quoted, err := syntax.Quote(path, syntax.LangBash)
	if err != nil {
		return strconv.Quote(path)
	}
	return quoted
}

func (r *Reader) record(ctx context.Context, req Request, resolved string, outcome *Outcome, err error, elapsed time.Duration) {
	if r.recorder == nil {
		return
	}

	event := Event{
		Path:         req.Path,
		ResolvedPath: resolved,
		Kind:         KindOf(err),
		Duration:     elapsed,
	}
	if req.Offset != nil {
		event.Offset = *req.Offset
	}
	if req.Limit != nil {
		event.Limit = *req.Limit
	}
	if outcome != nil {
		event.TotalLines = outcome.TotalLines
		event.OutputLines = outcome.OutputLines
		event.NextOffset = outcome.NextOffset
		if outcome.Truncation != nil {
			event.TruncatedBy = outcome.Truncation.TruncatedBy
		}
	}
	var readErr *Error
	if errors.As(err, &readErr) && readErr.Kind == KindOffsetOutOfRange {
		event.TotalLines = readErr.TotalLines
	}

	if recErr := r.recorder.Record(context.WithoutCancel(ctx), event); recErr != nil {
		r.logger.Warn("failed to record read", zap.String("path", req.Path), zap.Error(recErr))
	}
}
