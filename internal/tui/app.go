// internal/tui/app.go
//
// This is the review TUI for agx. It shows a plan's steps on the left and,
// on the right, either the diagnostics for the selected step or the generated
// program. It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the plan, the latest pipeline outcome and the widgets
// 2. Update: keys and pipeline results become new state
// 3. View: state renders to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/agx/internal/pipeline"
	"github.com/kingrea/agx/internal/plan"
	"github.com/kingrea/agx/internal/validate"
)

// pane is the right-hand content mode.
type pane int

const (
	paneDetail pane = iota // Selected step and its diagnostics
	paneCode               // Generated program
)

// Processor runs one plan through validation and compilation.
type Processor interface {
	Process(p plan.Plan) pipeline.Outcome
}

// AppOption customizes App construction.
type AppOption func(*App)

// WithOutputPath enables the write key.
func WithOutputPath(path string) AppOption {
	return func(a *App) {
		a.outputPath = strings.TrimSpace(path)
	}
}

// WithSource labels the plan in the header.
func WithSource(label string) AppOption {
	return func(a *App) {
		a.source = label
	}
}

type outcomeMsg struct {
	outcome pipeline.Outcome
}

type writtenMsg struct {
	path string
	err  error
}

type keyMap struct {
	Quit      key.Binding
	Toggle    key.Binding
	Recompile key.Binding
	Write     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Toggle:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "steps/code")),
		Recompile: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recompile")),
		Write:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "write program")),
	}
}

// stepItem is one plan step in the list.
type stepItem struct {
	index    int
	step     plan.Step
	problems int
	checked  bool
}

func (s stepItem) Title() string {
	mark := "·"
	if s.checked {
		mark = "✓"
		if s.problems > 0 {
			mark = "✗"
		}
	}
	name := s.step.Function
	if s.step.Malformed {
		name = "<malformed>"
	} else if name == "" {
		name = "<missing function>"
	}
	return fmt.Sprintf("%s %d. %s", mark, s.index, name)
}

func (s stepItem) Description() string {
	parts := []string{}
	if s.step.HasAssign() {
		parts = append(parts, "→ "+s.step.Assign)
	}
	if s.problems > 0 {
		parts = append(parts, fmt.Sprintf("%d problem(s)", s.problems))
	}
	if len(parts) == 0 {
		return strings.Join(s.step.Args.Names(), ", ")
	}
	return strings.Join(parts, " · ")
}

func (s stepItem) FilterValue() string {
	return s.step.Function
}

// App is the review model.
type App struct {
	processor  Processor
	plan       plan.Plan
	source     string
	outputPath string

	outcome  pipeline.Outcome
	compiled bool
	steps    list.Model
	content  viewport.Model
	pane     pane
	keys     keyMap

	width     int
	height    int
	statusMsg string
	err       error
}

// NewApp builds the review model for p.
func NewApp(processor Processor, p plan.Plan, opts ...AppOption) *App {
	steps := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	steps.Title = "PLAN"
	steps.SetShowHelp(false)
	steps.SetFilteringEnabled(false)
	a := &App{
		processor: processor,
		plan:      p,
		steps:     steps,
		content:   viewport.New(0, 0),
		keys:      defaultKeys(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.refreshSteps()
	return a
}

// Init compiles the plan once on start.
func (a *App) Init() tea.Cmd {
	return a.process()
}

func (a *App) process() tea.Cmd {
	processor, p := a.processor, a.plan
	return func() tea.Msg {
		return outcomeMsg{outcome: processor.Process(p)}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case outcomeMsg:
		a.outcome = msg.outcome
		a.compiled = true
		a.err = msg.outcome.Err
		if msg.outcome.OK() {
			a.statusMsg = fmt.Sprintf("Compiled %d step(s)", len(a.plan))
		} else {
			a.statusMsg = fmt.Sprintf("Result: %s", msg.outcome.Tag)
		}
		a.refreshSteps()
		a.refreshContent()
		return a, nil

	case writtenMsg:
		a.err = msg.err
		if msg.err == nil {
			a.statusMsg = "Wrote " + msg.path
		}
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Toggle):
			if a.pane == paneDetail {
				a.pane = paneCode
			} else {
				a.pane = paneDetail
			}
			a.refreshContent()
			return a, nil
		case key.Matches(msg, a.keys.Recompile):
			a.statusMsg = "Recompiling..."
			return a, a.process()
		case key.Matches(msg, a.keys.Write):
			return a, a.write()
		}
	}

	var cmd tea.Cmd
	if a.pane == paneCode {
		a.content, cmd = a.content.Update(msg)
		return a, cmd
	}
	before := a.steps.Index()
	a.steps, cmd = a.steps.Update(msg)
	if a.steps.Index() != before {
		a.refreshContent()
	}
	return a, cmd
}

func (a *App) write() tea.Cmd {
	if a.outputPath == "" {
		a.statusMsg = "No output path configured"
		return nil
	}
	if !a.outcome.OK() {
		a.statusMsg = "Nothing to write: plan did not compile"
		return nil
	}
	path, code := a.outputPath, a.outcome.Code
	return func() tea.Msg {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return writtenMsg{path: path, err: err}
		}
		return writtenMsg{path: path, err: os.WriteFile(path, []byte(code), 0o644)}
	}
}

func (a *App) resize() {
	leftWidth, rightWidth := a.columns()
	bodyHeight := max(5, a.height-6)
	a.steps.SetSize(max(10, leftWidth-2), bodyHeight)
	a.content.Width = max(10, rightWidth-4)
	a.content.Height = max(3, bodyHeight-2)
	a.refreshContent()
}

func (a *App) columns() (int, int) {
	width := a.width
	if width <= 0 {
		width = 100
	}
	left := max(24, width/3)
	return left, max(20, width-left-2)
}

func (a *App) problemsByStep() map[int][]validate.Diagnostic {
	out := map[int][]validate.Diagnostic{}
	for _, d := range a.outcome.Diagnostics {
		out[d.Step] = append(out[d.Step], d)
	}
	return out
}

func (a *App) refreshSteps() {
	problems := a.problemsByStep()
	items := make([]list.Item, 0, len(a.plan))
	for i, step := range a.plan {
		items = append(items, stepItem{
			index:    i + 1,
			step:     step,
			problems: len(problems[i+1]),
			checked:  a.compiled,
		})
	}
	selected := a.steps.Index()
	a.steps.SetItems(items)
	if selected < len(items) {
		a.steps.Select(selected)
	}
}

func (a *App) refreshContent() {
	if a.pane == paneCode {
		a.content.SetContent(a.renderCode())
	} else {
		a.content.SetContent(a.renderDetail())
	}
	a.content.GotoTop()
}

func (a *App) renderCode() string {
	if !a.compiled {
		return "Compiling..."
	}
	if !a.outcome.OK() {
		return fmt.Sprintf("No program: %s", a.outcome.Tag)
	}
	return a.outcome.Code
}

func (a *App) renderDetail() string {
	var b strings.Builder
	problems := a.problemsByStep()
	if general := problems[0]; len(general) > 0 {
		for _, d := range general {
			b.WriteString(errorStyle.Render(d.String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	item, ok := a.steps.SelectedItem().(stepItem)
	if !ok {
		if b.Len() == 0 {
			return "Empty plan."
		}
		return b.String()
	}
	step := item.step
	b.WriteString(labelStyle.Render("function") + " " + step.Function + "\n")
	if step.HasAssign() {
		b.WriteString(labelStyle.Render("assign") + "   " + step.Assign + "\n")
	}
	if len(step.Args) > 0 {
		b.WriteString(labelStyle.Render("args") + "\n")
		for _, arg := range step.Args {
			fmt.Fprintf(&b, "  %s = %s\n", arg.Name, describeValue(arg.Value))
		}
	}
	diags := problems[item.index]
	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Code < diags[j].Code })
	if len(diags) > 0 {
		b.WriteString("\n")
		for _, d := range diags {
			b.WriteString(errorStyle.Render("✗ "+d.Message) + "\n")
			if d.Suggestion != "" {
				b.WriteString(hintStyle.Render("  did you mean "+d.Suggestion+"?") + "\n")
			}
		}
	} else if a.compiled {
		b.WriteString("\n" + okStyle.Render("✓ no problems") + "\n")
	}
	return b.String()
}

func describeValue(v plan.Value) string {
	switch v.Kind {
	case plan.KindString, plan.KindTemplate:
		return fmt.Sprintf("%q", v.Text())
	case plan.KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case plan.KindInt, plan.KindFloat:
		return v.Number
	default:
		return "<" + v.TypeName() + ">"
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// View renders the board.
func (a *App) View() string {
	leftWidth, rightWidth := a.columns()
	header := titleStyle.MarginBottom(1).Render("⬡ AGX REVIEW")
	if a.source != "" {
		header += hintStyle.Render("  " + a.source)
	}
	left := boxStyle.Width(leftWidth).Render(a.steps.View())
	title := "STEP"
	if a.pane == paneCode {
		title = "PROGRAM"
	}
	right := boxStyle.Width(rightWidth).Render(labelStyle.Render(title) + "\n" + a.content.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	status := a.statusMsg
	if a.err != nil {
		status = errorStyle.Render(firstLine(a.err.Error()))
	}
	help := []string{}
	for _, b := range []key.Binding{a.keys.Toggle, a.keys.Recompile, a.keys.Write, a.keys.Quit} {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	footer := hintStyle.Render(strings.Join(help, " · "))
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status, footer)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
