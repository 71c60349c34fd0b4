package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/samcharles93/ai/internal/inference"
)

type statsStyles struct {
	label lipgloss.Style
	value lipgloss.Style
	state lipgloss.Style
}

func newStatsStyles(w io.Writer) statsStyles {
	r := lipgloss.NewRenderer(w)
	return statsStyles{
		label: r.NewStyle().Foreground(lipgloss.Color("8")),
		value: r.NewStyle().Bold(true),
		state: r.NewStyle().Foreground(lipgloss.Color("4")),
	}
}

// formatStats renders the one-line summary printed after a run. The renderer
// drops styling when w is not a terminal.
func formatStats(w io.Writer, st inference.Stats) string {
	s := newStatsStyles(w)
	return fmt.Sprintf("%s %s %s %s %s",
		s.value.Render(fmt.Sprintf("%d", st.TokensGenerated)),
		s.label.Render("tokens generated"),
		s.value.Render(fmt.Sprintf("(%.2f token/s)", st.TPS)),
		s.label.Render("in "+st.Duration.Round(time.Millisecond).String()),
		s.state.Render("["+st.State.String()+"]"),
	)
}

func printStats(w io.Writer, st inference.Stats) {
	_, _ = fmt.Fprintln(w, formatStats(w, st))
}
