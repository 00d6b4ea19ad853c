package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vleroux/upscale-pipeline/internal/model"
)

// Colors
var (
	colorPrimary = lipgloss.Color("39")  // Blue
	colorSuccess = lipgloss.Color("42")  // Green
	colorWarning = lipgloss.Color("214") // Orange
	colorError   = lipgloss.Color("196") // Red
	colorMuted   = lipgloss.Color("240") // Dark gray
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	jobStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))

	completedStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	failedStyle = lipgloss.NewStyle().
			Foreground(colorError)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	// Batch state glyphs
	glyphPlanned    = lipgloss.NewStyle().Foreground(colorMuted).SetString("○")
	glyphExtracting = lipgloss.NewStyle().Foreground(colorPrimary).SetString("◔")
	glyphUpscaling  = lipgloss.NewStyle().Foreground(colorWarning).SetString("●")
	glyphRemuxing   = lipgloss.NewStyle().Foreground(colorPrimary).SetString("◕")
	glyphComplete   = lipgloss.NewStyle().Foreground(colorSuccess).SetString("✓")
	glyphFailed     = lipgloss.NewStyle().Foreground(colorError).SetString("✗")

	// Progress bar styles
	barFull = lipgloss.NewStyle().
		Foreground(colorSuccess).
		SetString("█")

	barEmpty = lipgloss.NewStyle().
			Foreground(colorMuted).
			SetString("░")

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)
)

// BatchGlyph returns the glyph for a batch state
func BatchGlyph(state model.BatchState) string {
	switch state {
	case model.BatchExtracting:
		return glyphExtracting.String()
	case model.BatchUpscaling:
		return glyphUpscaling.String()
	case model.BatchRemuxing:
		return glyphRemuxing.String()
	case model.BatchComplete:
		return glyphComplete.String()
	case model.BatchFailed:
		return glyphFailed.String()
	default:
		return glyphPlanned.String()
	}
}

// RenderBar creates a progress bar
func RenderBar(filled, total, width int) string {
	if total == 0 {
		return ""
	}
	filledWidth := (filled * width) / total
	if filledWidth > width {
		filledWidth = width
	}

	bar := ""
	for i := 0; i < filledWidth; i++ {
		bar += barFull.String()
	}
	for i := filledWidth; i < width; i++ {
		bar += barEmpty.String()
	}
	return bar
}
