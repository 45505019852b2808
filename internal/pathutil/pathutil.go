// Package pathutil turns caller-supplied paths into absolute paths for reading.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidPath is returned for paths that cannot be resolved at all.
var ErrInvalidPath = errors.New("invalid path")

const narrowNoBreakSpace = "\u202F"

var (
	unicodeSpaces = regexp.MustCompile("[\u00A0\u2000-\u200A\u202F\u205F\u3000]")
	amPmSuffix    = regexp.MustCompile(` (AM|PM)\.`)
)

// homeDir is swapped in tests.
var homeDir = os.UserHomeDir

// ResolveReadPath maps path onto an absolute, cleaned path. Relative paths are resolved
// against cwd. A leading "@" is dropped, "~" expands to the home directory and exotic
// unicode spaces become plain spaces. No sandboxing is applied here.
func ResolveReadPath(path, cwd string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	if strings.ContainsRune(path, 0) || strings.ContainsRune(cwd, 0) {
		return "", fmt.Errorf("%w: path contains a null byte", ErrInvalidPath)
	}

	expanded, err := expand(path)
	if err != nil {
		return "", err
	}

	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}

	if cwd == "" {
		return "", fmt.Errorf("%w: relative path %q with no working directory", ErrInvalidPath, path)
	}
	base, err := filepath.Abs(cwd)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	return filepath.Join(base, expanded), nil
}

func expand(path string) (string, error) {
	path = strings.TrimPrefix(path, "@")
	path = unicodeSpaces.ReplaceAllString(path, " ")

	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := homeDir()
	if err != nil {
		return "", fmt.Errorf("%w: cannot expand ~: %v", ErrInvalidPath, err)
	}
	return home + strings.TrimPrefix(path, "~"), nil
}

// Variants lists alternate spellings of absPath that may name the same file on disk,
// original first: macOS screenshot names use a narrow no-break space before AM/PM,
// macOS stores names in NFD form, and pasted names often carry typographic quotes.
func Variants(absPath string) []string {
	nfd := norm.NFD.String(absPath)
	return lo.Uniq([]string{
		absPath,
		amPmSuffix.ReplaceAllString(absPath, narrowNoBreakSpace+"$1."),
		nfd,
		curlyQuotes(absPath),
		curlyQuotes(nfd),
	})
}

func curlyQuotes(path string) string {
	return strings.ReplaceAll(path, "'", "\u2019")
}
