package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/vm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
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

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

const callTimeout = 5 * time.Second

type interactiveModel struct {
	err         error
	machine     *vm.VM
	original    *bytecode.Unit
	rewritten   *bytecode.Unit
	cfg         TransformConfig
	filename    string
	result      string
	code        string
	diagnostics []string
	funcs       []funcInfo
	inputs      []textinput.Model
	selected    int
	focusIdx    int
	state       modelState
}

type funcInfo struct {
	name        string
	sig         string
	params      []bytecode.Type
	transformed bool
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateShowCode
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(filename string, cfg TransformConfig) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		cfg:      cfg,
		state:    stateSelectFunc,
	}
}

type loadedMsg struct {
	err         error
	machine     *vm.VM
	original    *bytecode.Unit
	rewritten   *bytecode.Unit
	diagnostics []string
	funcs       []funcInfo
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadUnit
}

func (m *interactiveModel) loadUnit() tea.Msg {
	data, err := readUnit(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	original, err := bytecode.ParseUnit(data)
	if err != nil {
		return loadedMsg{err: err}
	}

	loader, err := loadClasspath(m.cfg.Classpath, m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	var diags []string
	out, err := transformed(data, m.cfg, loader, func(msg string) { diags = append(diags, msg) })
	if err != nil {
		return loadedMsg{err: err}
	}
	rewritten, err := bytecode.ParseUnit(out)
	if err != nil {
		return loadedMsg{err: err}
	}
	machine, err := vm.New(rewritten, vm.WithClassResolver(loader))
	if err != nil {
		return loadedMsg{err: err}
	}

	var funcs []funcInfo
	for i := range original.Functions {
		fn := &original.Functions[i]
		if fn.IsContinuation() {
			continue
		}
		funcs = append(funcs, funcInfo{
			name:        fn.Name,
			sig:         signature(fn),
			params:      fn.Params,
			transformed: rewritten.FindFunction(fn.Name+bytecode.ContinuationSuffix) >= 0,
		})
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].name < funcs[j].name })

	return loadedMsg{
		machine:     machine,
		original:    original,
		rewritten:   rewritten,
		diagnostics: diags,
		funcs:       funcs,
	}
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
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "d":
			if m.state == stateSelectFunc && len(m.funcs) > 0 {
				m.code = m.renderCode(m.funcs[m.selected])
				m.state = stateShowCode
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult, stateShowCode:
				m.state = stateSelectFunc
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
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult, stateShowCode:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.machine = msg.machine
		m.original = msg.original
		m.rewritten = msg.rewritten
		m.diagnostics = msg.diagnostics
		m.funcs = msg.funcs

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

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = p.String()
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.machine == nil {
		return callResultMsg{err: fmt.Errorf("unit not loaded")}
	}
	f := m.funcs[m.selected]
	raw := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		raw[i] = input.Value()
	}
	res, err := callFunction(context.Background(), m.machine, f.name, raw, callTimeout)
	return callResultMsg{result: res, err: err}
}

// renderCode shows the original function next to its rewritten form and
// continuation.
func (m *interactiveModel) renderCode(f funcInfo) string {
	var before, after strings.Builder
	if idx := m.original.FindFunction(f.name); idx >= 0 {
		if err := bytecode.DisassembleFunction(&before, m.original, idx); err != nil {
			return errorStyle.Render(err.Error())
		}
	}
	for _, name := range []string{f.name, f.name + bytecode.ContinuationSuffix} {
		if idx := m.rewritten.FindFunction(name); idx >= 0 {
			if err := bytecode.DisassembleFunction(&after, m.rewritten, idx); err != nil {
				return errorStyle.Render(err.Error())
			}
		}
	}
	left := titleStyle.Render("original") + "\n" + before.String()
	if !f.transformed {
		return paneStyle.Render(left)
	}
	right := titleStyle.Render("transformed") + "\n" + after.String()
	return lipgloss.JoinHorizontal(lipgloss.Top, paneStyle.Render(left), paneStyle.Render(right))
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.machine == nil {
		return "Loading unit..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("asyncify"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		for _, d := range m.diagnostics {
			b.WriteString(errorStyle.Render(d))
			b.WriteString("\n")
		}
		if len(m.diagnostics) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Select a function:\n\n")
		for i, f := range m.funcs {
			line := m.formatFunc(f)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • d code • q quit"))

	case stateShowCode:
		b.WriteString(m.code)
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter back • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.params[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("futures: value or failed:msg • tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.name)))
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

func (m *interactiveModel) formatFunc(f funcInfo) string {
	s := funcStyle.Render(f.sig)
	if f.transformed {
		s += " " + typeStyle.Render("[async]")
	}
	return s
}

func runInteractive(filename string, cfg TransformConfig) error {
	p := tea.NewProgram(newInteractiveModel(filename, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
