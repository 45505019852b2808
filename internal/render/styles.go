// Package render formats read results for the terminal.
package render

import (
	"github.com/charmbracelet/lipgloss"
)

// ANSI color codes
const (
	ColorYellow = lipgloss.Color("11") // Truncation notices
	ColorGreen  = lipgloss.Color("10") // Success indicator
	ColorRed    = lipgloss.Color("9")  // Error indicator
	ColorGray   = lipgloss.Color("8")  // Dim/secondary (timing, meta info)
)

const (
	SymbolSuccess = "✓" // Successful read
	SymbolError   = "✗" // Failed read
	SymbolNotice  = "→" // Continuation hint
)

var (
	// NoticeStyle is used for continuation notices
	NoticeStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)

	ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed)

	// DimStyle is used for secondary information like timing
	DimStyle = lipgloss.NewStyle().Foreground(ColorGray)
)

// StyledSymbol returns a symbol with appropriate styling applied
func StyledSymbol(symbol string) string {
	switch symbol {
	case SymbolSuccess:
		return SuccessStyle.Render(symbol)
	case SymbolError:
		return ErrorStyle.Render(symbol)
	case SymbolNotice:
		return NoticeStyle.Render(symbol)
	default:
		return symbol
	}
}
