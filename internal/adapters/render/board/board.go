// Package board draws sessions as a terminal board grouped by day.
package board

import (
	"fmt"

	"github.com/royalclubcanada/dropin/internal/domain"
)

var tallyOrder = []domain.Status{
	domain.StatusOpen,
	domain.StatusFilled,
	domain.StatusConfirmed,
	domain.StatusFailed,
}

type day struct {
	heading  string
	sessions []domain.SessionView
}

// board is the session list arranged for display: one section per calendar
// day in the order the sessions arrive, plus a count per status.
type board struct {
	title    string
	total    int
	days     []day
	tally    map[domain.Status]int
	players  int
	capacity int
}

func newBoard(views []domain.SessionView, title string) board {
	if title == "" {
		title = "Drop-In Sessions"
	}

	b := board{title: title, total: len(views), tally: map[domain.Status]int{}}
	for _, view := range views {
		b.tally[view.Status]++
		if view.Status == domain.StatusOpen {
			b.players += view.PlayerCount
			b.capacity += view.Capacity
		}

		heading := dayHeading(view.Window)
		if n := len(b.days); n > 0 && b.days[n-1].heading == heading {
			b.days[n-1].sessions = append(b.days[n-1].sessions, view)
			continue
		}
		b.days = append(b.days, day{heading: heading, sessions: []domain.SessionView{view}})
	}

	return b
}

func dayHeading(window domain.Window) string {
	return fmt.Sprintf("%s %s", window.Start.Format("Mon"), window.Date())
}

// Render draws the board for views, which are expected in window order.
func Render(views []domain.SessionView, opts RenderOptions) (string, error) {
	for _, view := range views {
		if err := view.Window.Validate(); err != nil {
			return "", fmt.Errorf("render session %s: %w", view.ID, err)
		}
	}

	return renderBoard(newBoard(views, opts.Title), opts, newStyles()), nil
}
