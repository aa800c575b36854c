package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/native-addin/dispatch"
	"github.com/wippyai/native-addin/variant"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	memberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	obj      dispatch.Instance
	result   string
	members  []memberInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type memberInfo struct {
	label    string
	name     string
	index    int
	method   bool
	writable bool
	params   []paramInfo
}

type paramInfo struct {
	name     string
	optional bool
}

type modelState int

const (
	stateSelectMember modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(obj dispatch.Instance) *interactiveModel {
	m := &interactiveModel{obj: obj, state: stateSelectMember}
	for i := 0; i < obj.PropertyCount(); i++ {
		name, _ := obj.PropertyName(i, 0)
		m.members = append(m.members, memberInfo{
			label:    formatProperty(obj, i),
			name:     name,
			index:    i,
			writable: obj.IsWritable(i),
		})
	}
	for i := 0; i < obj.MethodCount(); i++ {
		name, _ := obj.MethodName(i, 0)
		mi := memberInfo{label: formatMethod(obj, i), name: name, index: i, method: true}
		for p := 0; p < obj.MethodArity(i); p++ {
			mi.params = append(mi.params, paramInfo{
				name:     fmt.Sprintf("arg%d", p),
				optional: obj.HasOptionalDefault(i, p),
			})
		}
		m.members = append(m.members, mi)
	}
	return m
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectMember && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectMember && m.selected < len(m.members)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectMember:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.invoke
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.invoke

			case stateShowResult:
				m.state = stateSelectMember
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectMember
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectMember
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// prepareInputs builds one field per method parameter. A writable
// property gets a single field; leaving it empty reads the property.
func (m *interactiveModel) prepareInputs() {
	mi := m.members[m.selected]
	m.inputs = nil
	switch {
	case mi.method:
		for _, p := range mi.params {
			ti := textinput.New()
			ti.Placeholder = "literal"
			if p.optional {
				ti.Placeholder = "optional"
			}
			ti.Prompt = p.name + ": "
			ti.Width = 40
			m.inputs = append(m.inputs, ti)
		}
	case mi.writable:
		ti := textinput.New()
		ti.Placeholder = "empty reads"
		if v, ok := m.obj.GetProperty(mi.index); ok {
			ti.Placeholder = variant.WitTypeName(variant.WitType(v.Kind()))
		}
		ti.Prompt = "value: "
		ti.Width = 40
		m.inputs = append(m.inputs, ti)
	}
	if len(m.inputs) > 0 {
		m.inputs[0].Focus()
	}
	m.focusIdx = 0
}

func (m *interactiveModel) invoke() tea.Msg {
	mi := m.members[m.selected]
	if !mi.method {
		if len(m.inputs) == 1 && m.inputs[0].Value() != "" {
			if err := setProperty(m.obj, mi.name, m.inputs[0].Value()); err != nil {
				return callResultMsg{err: err}
			}
		}
		v, err := getProperty(m.obj, mi.name)
		if err != nil {
			return callResultMsg{err: err}
		}
		return callResultMsg{result: variant.Format(v)}
	}

	var literals []string
	for _, input := range m.inputs {
		if input.Value() == "" {
			break
		}
		literals = append(literals, input.Value())
	}
	result, args, err := callMethod(m.obj, mi.name, literals)
	if err != nil {
		return callResultMsg{err: err}
	}

	var b strings.Builder
	b.WriteString(variant.Format(result))
	for i := 0; i < args.Len(); i++ {
		if args.Dirty(i) {
			fmt.Fprintf(&b, "\narg%d := %s", i, variant.Format(args.Get(i)))
		}
	}
	return callResultMsg{result: b.String()}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Add-in Browser"))
	b.WriteString(" ")
	b.WriteString(m.obj.ClassName())
	b.WriteString(" ")
	b.WriteString(typeStyle.Render(m.obj.Locale().String()))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectMember:
		b.WriteString("Select a member:\n\n")
		for i, mi := range m.members {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + mi.label))
			} else {
				b.WriteString("  " + memberStyle.Render(mi.label))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • q quit"))

	case stateInputArgs:
		mi := m.members[m.selected]
		fmt.Fprintf(&b, "%s\n\n", memberStyle.Render(mi.label))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("literals like s64:5, f64:1.5, string:text, list<u8>:ff • tab next field • enter run • esc back"))

	case stateShowResult:
		mi := m.members[m.selected]
		fmt.Fprintf(&b, "Result of %s:\n\n", memberStyle.Render(mi.name))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(obj dispatch.Instance) error {
	p := tea.NewProgram(newInteractiveModel(obj), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
