package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/royalclubcanada/dropin/internal/domain"
)

const barWidth = 18

type RenderOptions struct {
	Title string
	// ShowMembers lists every member with its hold status.
	ShowMembers bool
	Now         time.Time
}

func renderBoard(b board, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(b.title),
		s.header.Render(fmt.Sprintf("sessions: %d", b.total)),
	}

	if b.total == 0 {
		lines = append(lines, s.empty.Render("No sessions scheduled."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, s.header.Render(tallyLine(b)))
	for _, d := range b.days {
		lines = append(lines, s.day.Render(d.heading))
		for _, view := range d.sessions {
			lines = append(lines, s.section.Render(renderSession(view, opts, s)))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// tallyLine counts sessions per status and the open spots left.
func tallyLine(b board) string {
	parts := make([]string, 0, len(tallyOrder)+1)
	for _, status := range tallyOrder {
		if n := b.tally[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if b.capacity > 0 {
		parts = append(parts, fmt.Sprintf("%d open spots", b.capacity-b.players))
	}
	return strings.Join(parts, ", ")
}

func renderSession(view domain.SessionView, opts RenderOptions, s styles) string {
	heading := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.session.Render(view.Label()),
		" ",
		statusBadge(view.Status, s),
	)

	parts := []string{heading}
	if view.Location != "" {
		parts = append(parts, s.meta.Render(view.Location))
	}
	parts = append(parts, playersLine(view, s))
	parts = append(parts, s.meta.Render(fmt.Sprintf("hold: %s per player, %d courts needed", formatCents(view.HoldAmountCents), view.RequiredUnits)))

	switch view.Status {
	case domain.StatusConfirmed:
		parts = append(parts, s.detail.Render("courts: "+strings.Join(view.ReservationRefs, ", ")))
	case domain.StatusFailed:
		parts = append(parts, s.warning.Render("failed: "+view.FailureReason))
	}

	if opts.ShowMembers {
		for i, member := range view.Members {
			parts = append(parts, s.detail.Render(fmt.Sprintf("  %d. %s (%s)", i+1, member.DisplayName, member.HoldStatus)))
		}
	}

	if !opts.Now.IsZero() && view.Status == domain.StatusOpen && !view.Window.Start.After(opts.Now) {
		parts = append(parts, s.warning.Render("[started]"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func statusBadge(status domain.Status, s styles) string {
	style, ok := s.badges[string(status)]
	if !ok {
		style = s.meta
	}
	return style.Render(strings.ToUpper(status.Label()))
}

func playersLine(view domain.SessionView, s styles) string {
	bar := renderCapacityBar(view.PlayerCount, view.Capacity, barWidth, s)
	count := s.detail.Render(fmt.Sprintf("%d/%d players", view.PlayerCount, view.Capacity))

	spots := "full"
	if view.SpotsLeft > 0 {
		spots = fmt.Sprintf("%d spots left", view.SpotsLeft)
		if view.SpotsLeft == 1 {
			spots = "1 spot left"
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, bar, " ", count, " ", s.meta.Render("("+spots+")"))
}

func renderCapacityBar(players, capacity, width int, s styles) string {
	if width <= 0 || capacity <= 0 {
		return ""
	}

	filled := players * width / capacity
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
