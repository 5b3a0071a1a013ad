package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/royalclubcanada/dropin/internal/application"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/ports"
)

const bookingLabel = "Booking courts..."

// steppedCourts reports each court backend call before forwarding it.
type steppedCourts struct {
	courtBackend
	report func(step string)
}

var (
	_ ports.ReservationCanceller = steppedCourts{}
	_ ports.ReservationReleaser  = steppedCourts{}
)

func (c steppedCourts) Check(ctx context.Context, window domain.Window) (int, error) {
	c.report(fmt.Sprintf("Checking courts for %s %s...", window.Date(), window.Label()))
	return c.courtBackend.Check(ctx, window)
}

func (c steppedCourts) Reserve(ctx context.Context, key string, window domain.Window, units int) (ports.Reservation, error) {
	c.report(fmt.Sprintf("Reserving %d courts...", units))
	return c.courtBackend.Reserve(ctx, key, window, units)
}

func (c steppedCourts) Cancel(ctx context.Context, refs []string) error {
	canceller, ok := c.courtBackend.(ports.ReservationCanceller)
	if !ok {
		return errors.New("court backend cannot cancel reservations")
	}
	c.report("Cancelling the partial booking...")
	return canceller.Cancel(ctx, refs)
}

func (c steppedCourts) Release(ctx context.Context, key string) error {
	releaser, ok := c.courtBackend.(ports.ReservationReleaser)
	if !ok {
		return errors.New("court backend cannot release reservations")
	}
	c.report("Releasing the unanswered reservation...")
	return releaser.Release(ctx, key)
}

type joinedMsg struct {
	result application.JoinResult
	err    error
}

type courtStepMsg string

// fillModel joins players one by one and follows the court calls of the
// filling join with a spinner.
type fillModel struct {
	spinner  spinner.Model
	join     func(domain.Member) tea.Cmd
	waitStep tea.Cmd
	pending  []domain.Member
	current  domain.Member
	step     string
	results  []application.JoinResult
	err      error
	done     bool
}

func newFillModel(members []domain.Member, join func(domain.Member) tea.Cmd, waitStep tea.Cmd) fillModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	m := fillModel{
		spinner:  s,
		join:     join,
		waitStep: waitStep,
		pending:  members,
	}
	if len(members) > 0 {
		m = m.advance()
	}
	return m
}

func (m fillModel) Init() tea.Cmd {
	if m.current == (domain.Member{}) {
		return tea.Quit
	}
	return tea.Batch(m.spinner.Tick, m.waitStep, m.join(m.current))
}

func (m fillModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case courtStepMsg:
		m.step = string(msg)
		return m, m.waitStep
	case joinedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.done = true
			return m, tea.Quit
		}
		m.results = append(m.results, msg.result)
		if msg.result.JustFilled || len(m.pending) == 0 {
			m.done = true
			return m, tea.Quit
		}
		m = m.advance()
		return m, m.join(m.current)
	default:
		return m, nil
	}
}

// advance moves the next pending member into current. The last member's
// join fills the session, so its label is the booking step.
func (m fillModel) advance() fillModel {
	m.current, m.pending = m.pending[0], m.pending[1:]
	m.step = ""
	if len(m.pending) == 0 {
		m.step = bookingLabel
	}
	return m
}

func (m fillModel) View() string {
	var b strings.Builder
	for _, result := range m.results {
		_, _ = fmt.Fprintf(&b, "  %s joined (%d/%d)\n",
			sanitizeForTerminal(result.Member.DisplayName), result.Session.PlayerCount, result.Session.Capacity)
	}
	if m.done {
		return b.String()
	}

	label := m.step
	if label == "" {
		label = fmt.Sprintf("Adding %s...", sanitizeForTerminal(m.current.DisplayName))
	}
	_, _ = fmt.Fprintf(&b, "%s %s", m.spinner.View(), label)
	return b.String()
}

// runFillProgress joins members in order on output's terminal and returns every
// committed join, stopping at the join that fills the session.
func runFillProgress(ctx context.Context, output io.Writer, engine *application.Engine, id domain.SessionID, members []domain.Member, steps <-chan string) ([]application.JoinResult, error) {
	stop := make(chan struct{})
	defer close(stop)

	join := func(member domain.Member) tea.Cmd {
		return func() tea.Msg {
			result, err := engine.Join(ctx, id, member)
			return joinedMsg{result: result, err: err}
		}
	}
	waitStep := func() tea.Msg {
		select {
		case step := <-steps:
			return courtStepMsg(step)
		case <-stop:
			return nil
		}
	}

	p := tea.NewProgram(
		newFillModel(members, join, waitStep),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	result, ok := finalModel.(fillModel)
	if !ok {
		return nil, fmt.Errorf("unexpected final progress model type %T", finalModel)
	}

	return result.results, result.err
}
