package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atinylittleshell/pageread/internal/journal"
	"github.com/atinylittleshell/pageread/internal/readtool"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Printer writes read outcomes, errors and journal entries. Styling is applied only
// when the writer is a terminal.
type Printer struct {
	w      io.Writer
	styled bool
}

// NewPrinter creates a Printer, styling output if w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{w: w, styled: styled}
}

// NewPlainPrinter creates a Printer that never styles its output.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *Printer) symbol(symbol string) string {
	if !p.styled {
		return symbol
	}
	return StyledSymbol(symbol)
}

// Outcome prints the text of a successful read. The continuation notice is dimmed.
func (p *Printer) Outcome(outcome *readtool.Outcome) error {
	text := outcome.Text
	if outcome.Notice != "" && p.styled {
		body, found := strings.CutSuffix(text, outcome.Notice)
		if found {
			text = body + NoticeStyle.Render(outcome.Notice)
		}
	}
	_, err := fmt.Fprintln(p.w, text)
	return err
}

// Error prints a failed read.
func (p *Printer) Error(err error) error {
	_, werr := fmt.Fprintf(p.w, "%s %s\n", p.symbol(SymbolError), p.style(ErrorStyle, err.Error()))
	return werr
}

// History prints journal entries, one per line.
func (p *Printer) History(entries []journal.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(p.w, p.style(DimStyle, "no reads recorded"))
		return err
	}

	for _, entry := range entries {
		if _, err := fmt.Fprintln(p.w, p.historyLine(entry)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) historyLine(entry journal.Entry) string {
	symbol := SymbolSuccess
	if !entry.Succeeded() {
		symbol = SymbolError
	}

	var detail string
	switch {
	case !entry.Succeeded():
		detail = p.style(ErrorStyle, entry.Kind)
	case entry.NextOffset > 0:
		detail = fmt.Sprintf("%d/%d lines %s offset=%d", entry.OutputLines, entry.TotalLines, p.symbol(SymbolNotice), entry.NextOffset)
	default:
		detail = fmt.Sprintf("%d/%d lines", entry.OutputLines, entry.TotalLines)
	}
	if entry.TruncatedBy != "" {
		detail += fmt.Sprintf(" (truncated by %s)", entry.TruncatedBy)
	}

	path := entry.ResolvedPath
	if path == "" {
		path = entry.Path
	}

	return fmt.Sprintf("%s %s %s %s %s",
		p.style(DimStyle, entry.CreatedAt.Local().Format(time.DateTime)),
		p.symbol(symbol),
		path,
		detail,
		p.style(DimStyle, entry.Duration().String()))
}
