// Package prompt asks the user which columns of a dataset to use, as a
// checkbox list in the terminal.
package prompt

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/dataset"
	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

// Questions asked for the primary and the secondary datasets.
const (
	PrimaryQuestion   = "Which fields should be searchable?"
	SecondaryQuestion = "Which fields should be used to search?"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	datasetStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// Model is a bubbletea checkbox list over a dataset's headers.
type Model struct {
	question string
	dataset  string
	options  []string
	selected []bool
	cursor   int
	done     bool
	aborted  bool
	keys     keyMap
	help     help.Model
}

func New(question, datasetName string, options []string) Model {
	return Model{
		question: question,
		dataset:  datasetName,
		options:  options,
		selected: make([]bool, len(options)),
		keys:     defaultKeys,
		help:     help.New(),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Cancel):
		m.aborted = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Confirm):
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Toggle):
		if len(m.options) > 0 {
			m.selected[m.cursor] = !m.selected[m.cursor]
		}
	case key.Matches(keyMsg, m.keys.All):
		all := !m.allSelected()
		for i := range m.selected {
			m.selected[i] = all
		}
	}
	return m, nil
}

func (m Model) allSelected() bool {
	for _, s := range m.selected {
		if !s {
			return false
		}
	}
	return true
}

func (m Model) View() string {
	if m.done || m.aborted {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.question))
	b.WriteString(" ")
	b.WriteString(datasetStyle.Render("(" + m.dataset + ")"))
	b.WriteString("\n\n")
	for i, option := range m.options {
		pointer := "  "
		if i == m.cursor {
			pointer = cursorStyle.Render("> ")
		}
		box := "[ ] "
		line := option
		if m.selected[i] {
			box = "[x] "
			line = selectedStyle.Render(option)
		}
		b.WriteString(pointer + box + line + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// Selected returns the checked options in header order.
func (m Model) Selected() []string {
	var names []string
	for i, option := range m.options {
		if m.selected[i] {
			names = append(names, option)
		}
	}
	return names
}

func (m Model) Aborted() bool { return m.aborted }

// Fields runs the checkbox prompt on the terminal behind in. Confirming with
// nothing checked returns an empty selection, not an error.
func Fields(ctx context.Context, in *os.File, out io.Writer, question string, d *dataset.Dataset) (dataset.Selection, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return dataset.Selection{}, apperrors.Newf(apperrors.ErrInvalidInput, 0,
			"stdin is not a terminal; pass --fields %s=<columns>", d.Name)
	}
	program := tea.NewProgram(New(question, d.Name, d.Headers),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := program.Run()
	if err != nil {
		return dataset.Selection{}, fmt.Errorf("running field prompt: %w", err)
	}
	m := final.(Model)
	if m.Aborted() {
		return dataset.Selection{}, apperrors.Newf(apperrors.ErrInvalidInput, 0,
			"field selection for %s cancelled", d.Name)
	}
	return dataset.Select(m.Selected()...), nil
}
