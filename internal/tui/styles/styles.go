package styles

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	ReelRed   = lipgloss.Color("#E50914")
	SlateDark = lipgloss.Color("#1F2937")
	DimGray   = lipgloss.Color("#6B7280")
	LightGray = lipgloss.Color("#9CA3AF")
	White     = lipgloss.Color("#F9FAFB")
	Green     = lipgloss.Color("#10B981")
	Amber     = lipgloss.Color("#F59E0B")
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(ReelRed).
			Bold(true).
			Padding(0, 1)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	AccentStyle = lipgloss.NewStyle().
			Foreground(ReelRed)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ReelRed).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Amber)
)

// Table styles
var (
	TableBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(DimGray)

	TableHeader = lipgloss.NewStyle().
			Foreground(LightGray).
			Bold(true).
			Padding(0, 1)

	TableCell = lipgloss.NewStyle().
			Padding(0, 1)

	TableSelected = lipgloss.NewStyle().
			Foreground(White).
			Background(SlateDark).
			Bold(true)
)

// Footer
var (
	KeyStyle = lipgloss.NewStyle().
			Foreground(ReelRed).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(DimGray)
)
