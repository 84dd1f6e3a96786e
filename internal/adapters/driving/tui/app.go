// Package tui provides the terminal vault browser following the Elm
// architecture: type a query, press enter, walk the results. It talks
// to the engine only through the driving port.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driving"
)

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// resultLimit is how many rows a search or listing shows.
const resultLimit = 20

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	scoreStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// row is one display line: a search hit or a listed item.
type row struct {
	item       domain.Item
	similarity float64
	scored     bool
}

// App is the vault browser model.
type App struct {
	engine driving.Engine

	input    textinput.Model
	rows     []row
	selected int
	status   string
	err      error
	width    int
	height   int
}

// Messages.
type (
	searchDoneMsg struct {
		results []domain.SearchResult
		err     error
	}
	listDoneMsg struct {
		items []domain.Item
		err   error
	}
	deleteDoneMsg struct {
		err error
	}
)

// NewApp creates the browser.
func NewApp(engine driving.Engine) *App {
	input := textinput.New()
	input.Placeholder = "search the vault…"
	input.Focus()
	input.CharLimit = 256

	return &App{
		engine: engine,
		input:  input,
		status: "enter searches, esc quits, ctrl+d deletes",
	}
}

// Init loads the most recent items.
func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.loadRecent())
}

// Update routes messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return a, tea.Quit
		case "enter":
			query := strings.TrimSpace(a.input.Value())
			if query == "" {
				return a, a.loadRecent()
			}
			a.status = "searching…"
			return a, a.search(query)
		case "up", "ctrl+p":
			if a.selected > 0 {
				a.selected--
			}
			return a, nil
		case "down", "ctrl+n":
			if a.selected < len(a.rows)-1 {
				a.selected++
			}
			return a, nil
		case "ctrl+d":
			if a.selected < len(a.rows) {
				a.status = "deleting…"
				return a, a.delete(a.rows[a.selected].item.ID)
			}
			return a, nil
		}

	case searchDoneMsg:
		a.err = msg.err
		a.rows = a.rows[:0]
		for _, res := range msg.results {
			a.rows = append(a.rows, row{item: res.Item, similarity: res.Similarity, scored: true})
		}
		a.selected = 0
		a.status = fmt.Sprintf("%d result(s)", len(a.rows))
		return a, nil

	case listDoneMsg:
		a.err = msg.err
		a.rows = a.rows[:0]
		for _, item := range msg.items {
			a.rows = append(a.rows, row{item: item})
		}
		a.selected = 0
		a.status = fmt.Sprintf("%d recent item(s)", len(a.rows))
		return a, nil

	case deleteDoneMsg:
		a.err = msg.err
		if msg.err == nil {
			a.status = "deleted"
			if query := strings.TrimSpace(a.input.Value()); query != "" {
				return a, a.search(query)
			}
			return a, a.loadRecent()
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// View renders the browser.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("stashdrop"))
	b.WriteString("\n\n")
	b.WriteString(a.input.View())
	b.WriteString("\n\n")

	if a.err != nil {
		b.WriteString(errorStyle.Render(domain.Reason(a.err)))
		b.WriteString("\n")
	}

	for i, r := range a.rows {
		line := a.renderRow(r, i == a.selected)
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render(a.status))
	return b.String()
}

func (a *App) renderRow(r row, selected bool) string {
	cursor := "  "
	if selected {
		cursor = "> "
	}

	title := r.item.Title
	if title == "" {
		title = "(untitled)"
	}
	if len(title) > 60 {
		title = title[:60] + "…"
	}

	var score string
	if r.scored {
		score = scoreStyle.Render(fmt.Sprintf(" %.2f", r.similarity))
	}

	line := cursor + categoryStyle.Render(fmt.Sprintf("%-9s", r.item.Category)) + " " + title + score
	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

// Selected returns the highlighted item, if any.
func (a *App) Selected() (*domain.Item, bool) {
	if a.selected >= len(a.rows) {
		return nil, false
	}
	item := a.rows[a.selected].item
	return &item, true
}

// ==================== Commands ====================

func (a *App) search(query string) tea.Cmd {
	return func() tea.Msg {
		results, err := a.engine.Search(context.Background(), query, resultLimit)
		return searchDoneMsg{results: results, err: err}
	}
}

func (a *App) loadRecent() tea.Cmd {
	return func() tea.Msg {
		items, err := a.engine.List(context.Background(), domain.ListFilter{Limit: resultLimit})
		return listDoneMsg{items: items, err: err}
	}
}

func (a *App) delete(id string) tea.Cmd {
	return func() tea.Msg {
		return deleteDoneMsg{err: a.engine.Delete(context.Background(), id)}
	}
}
