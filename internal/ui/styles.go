// Package ui holds terminal styling for the reqgraph CLI.
package ui

import (
	"fmt"
	"strings"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorPass   = 114 // green
	colorWarn   = 221 // yellow
	colorFail   = 203 // red
	colorOrange = 215
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderPass returns s in green.
func RenderPass(s string) string { return render(colorPass, s) }

// RenderWarn returns s in yellow.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderFail returns s in red.
func RenderFail(s string) string { return render(colorFail, s) }

// RenderStatus colors a requirement status: resolved statuses green,
// blocked red, anything else uncolored.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "completed", "closed", "resolved":
		return RenderPass(status)
	case "blocked":
		return RenderFail(status)
	case "in_progress", "in-progress":
		return RenderWarn(status)
	}
	return status
}

// RenderRelation colors a relation or edge type name with the same hues the
// default graph color scheme uses.
func RenderRelation(relation string) string {
	switch relation {
	case "blocking":
		return RenderFail(relation)
	case "related":
		return RenderAccent(relation)
	case "duplicate":
		return render(colorOrange, relation)
	case "subtask", "parent":
		return RenderPass(relation)
	}
	return relation
}

// RenderImpact colors an impact tier.
func RenderImpact(impact string) string {
	switch impact {
	case "critical":
		return RenderFail(impact)
	case "high":
		return render(colorOrange, impact)
	case "medium":
		return RenderWarn(impact)
	}
	return RenderMuted(impact)
}

// ProgressBar renders pct (0..100) as a fixed-width bar.
func ProgressBar(pct, width int) string {
	if width <= 0 {
		return ""
	}
	pct = max(0, min(100, pct))
	filled := pct * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if pct == 100 {
		return RenderPass(bar)
	}
	return bar
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
