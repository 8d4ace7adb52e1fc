// Package history renders an interactive browser over the sent log, so
// an operator can check what went out and when without touching the
// database by hand.
package history

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gigalert/internal/model"
)

// SentLog is the read side of the sent store the browser needs.
type SentLog interface {
	RecentSent(ctx context.Context, limit int) ([]model.SentRecord, error)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(1, 0, 1, 2)

	itemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true).
			Padding(0, 0, 0, 2)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(1, 0, 1, 4)
)

// Lines of chrome around the list (title block + hint line).
const chromeHeight = 5

type historyModel struct {
	records []model.SentRecord
	cursor  int
	offset  int // first visible record
	height  int
}

func (m historyModel) Init() tea.Cmd {
	return nil
}

func (m historyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.ensureCursorVisible()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.records)-1 {
				m.cursor++
			}
		case "g", "home":
			m.cursor = 0
		case "G", "end":
			m.cursor = max(len(m.records)-1, 0)
		case "pgup":
			m.cursor = max(m.cursor-m.pageSize(), 0)
		case "pgdown":
			m.cursor = min(m.cursor+m.pageSize(), max(len(m.records)-1, 0))
		}
		m.ensureCursorVisible()
	}
	return m, nil
}

func (m historyModel) pageSize() int {
	return max(m.height-chromeHeight, 1)
}

func (m *historyModel) ensureCursorVisible() {
	page := m.pageSize()
	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+page {
		m.offset = m.cursor - page + 1
	}
}

func (m historyModel) View() string {
	s := titleStyle.Render(fmt.Sprintf("Sent Log — %d most recent alerts", len(m.records)))
	s += "\n"

	if len(m.records) == 0 {
		s += emptyStyle.Render("(nothing sent yet)")
		s += "\n"
		s += hintStyle.Render("q quit")
		return s
	}

	end := min(m.offset+m.pageSize(), len(m.records))
	for i := m.offset; i < end; i++ {
		rec := m.records[i]
		label := fmt.Sprintf("%s  recipient %-10d %s",
			rec.SentAt.Local().Format("2006-01-02 15:04"),
			rec.RecipientID,
			shortFingerprint(rec.Fingerprint),
		)
		if i == m.cursor {
			s += selectedStyle.Render("> "+selectedMetaStyle.Render(label)) + "\n"
		} else {
			s += itemStyle.Render(metaStyle.Render(label)) + "\n"
		}
	}

	s += hintStyle.Render("↑/↓/j/k navigate  g/G top/bottom  q quit")
	return s
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12] + "…"
	}
	return fp
}

// Run loads up to limit entries from the sent log and launches the
// interactive browser.
func Run(ctx context.Context, log SentLog, limit int) error {
	records, err := log.RecentSent(ctx, limit)
	if err != nil {
		return fmt.Errorf("loading sent log: %w", err)
	}

	m := historyModel{records: records}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return fmt.Errorf("running sent log browser: %w", err)
	}
	return nil
}

// Summary returns a plain one-line-per-entry rendering for
// non-interactive terminals.
func Summary(records []model.SentRecord) string {
	if len(records) == 0 {
		return "nothing sent yet\n"
	}
	var out string
	for _, rec := range records {
		out += fmt.Sprintf("%s  recipient %d  %s\n",
			rec.SentAt.Local().Format(time.DateTime),
			rec.RecipientID,
			rec.Fingerprint,
		)
	}
	return out
}
