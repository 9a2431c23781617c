package cli

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary = lipgloss.Color("#0EA5E9")
	ColorSuccess = lipgloss.Color("#22C55E")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorError   = lipgloss.Color("#EF4444")
	ColorSubtle  = lipgloss.Color("#6B7280")
)

const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "!"
	SymbolBullet  = "•"
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	BrandStyle   = fg(ColorPrimary).Bold(true)
	CodeStyle    = fg(ColorPrimary)
	SuccessStyle = fg(ColorSuccess)
	WarningStyle = fg(ColorWarning)
	ErrorStyle   = fg(ColorError).Bold(true)
	DimStyle     = fg(ColorSubtle)

	// Labels in key/value listings share one column width
	KeyStyle = fg(ColorSubtle).Width(12)

	TableHeaderStyle = fg(ColorSubtle).Bold(true)
	TableCellStyle   = lipgloss.NewStyle().PaddingRight(2)
)
