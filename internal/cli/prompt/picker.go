package prompt

import (
	"errors"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCanceled is returned when the operator leaves the picker without
// choosing.
var ErrCanceled = errors.New("prompt: canceled")

type choiceItem Choice

func (i choiceItem) Title() string       { return i.Value }
func (i choiceItem) Description() string { return i.Detail }
func (i choiceItem) FilterValue() string { return i.Value }

// pickerModel is a single-choice list.
type pickerModel struct {
	list     list.Model
	chosen   string
	canceled bool
}

func newPickerModel(title string, choices []Choice) pickerModel {
	items := make([]list.Item, len(choices))
	for i, c := range choices {
		items[i] = choiceItem(c)
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowStatusBar(false)
	return pickerModel{list: l}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(choiceItem); ok {
				m.chosen = item.Value
				return m, tea.Quit
			}
		case "esc", "q", "ctrl+c":
			m.canceled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	return m.list.View()
}

func runPicker(title string, choices []Choice, in io.Reader, out io.Writer) (string, error) {
	final, err := tea.NewProgram(newPickerModel(title, choices), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return "", err
	}
	m := final.(pickerModel)
	if m.canceled || m.chosen == "" {
		return "", ErrCanceled
	}
	return m.chosen, nil
}
