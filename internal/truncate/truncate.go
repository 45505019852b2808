// Package truncate bounds text by a line count and a byte budget, whichever is hit first.
package truncate

import (
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	// DefaultMaxLines is the number of lines a single read may return.
	DefaultMaxLines = 2000
	// DefaultMaxBytes is the number of bytes a single read may return (50KB).
	DefaultMaxBytes = 50 * 1024
)

// By names the limit that cut the output.
type By string

const (
	ByNone  By = ""
	ByLines By = "lines"
	ByBytes By = "bytes"
)

// Result describes what Head kept and what it dropped.
type Result struct {
	Content               string `json:"content"`
	Truncated             bool   `json:"truncated"`
	TruncatedBy           By     `json:"truncatedBy,omitempty"`
	TotalLines            int    `json:"totalLines"`
	TotalBytes            int    `json:"totalBytes"`
	OutputLines           int    `json:"outputLines"`
	OutputBytes           int    `json:"outputBytes"`
	FirstLineExceedsLimit bool   `json:"firstLineExceedsLimit"`
	MaxLines              int    `json:"maxLines"`
	MaxBytes              int    `json:"maxBytes"`
}

// Head keeps whole lines from the start of text until either maxLines lines have been
// taken or the next line would push the output past maxBytes.
//
// Lines are never split, so a multi-byte character is never cut in half. If the first
// line alone is larger than maxBytes nothing is emitted and FirstLineExceedsLimit is set.
func Head(text string, maxLines, maxBytes int) Result {
	lines := strings.Split(text, "\n")

	result := Result{
		TotalLines: len(lines),
		TotalBytes: len(text),
		MaxLines:   maxLines,
		MaxBytes:   maxBytes,
	}

	if len(lines) <= maxLines && len(text) <= maxBytes {
		result.Content = text
		result.OutputLines = len(lines)
		result.OutputBytes = len(text)
		return result
	}

	result.Truncated = true

	if len(lines[0]) > maxBytes {
		result.TruncatedBy = ByBytes
		result.FirstLineExceedsLimit = true
		return result
	}

	var builder strings.Builder
	truncatedBy := ByLines
	outputBytes := 0
	outputLines := 0

	for i, line := range lines {
		if i >= maxLines {
			break
		}

		lineBytes := len(line)
		if i > 0 {
			lineBytes++ // joining newline
		}
		if outputBytes+lineBytes > maxBytes {
			truncatedBy = ByBytes
			break
		}

		if i > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString(line)
		outputBytes += lineBytes
		outputLines++
	}

	result.Content = builder.String()
	result.TruncatedBy = truncatedBy
	result.OutputLines = outputLines
	result.OutputBytes = outputBytes
	return result
}

// FormatSize renders a byte count for humans, e.g. "50 KiB".
func FormatSize(bytes int) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
