package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"iasmeen/internal/analysis"
	"iasmeen/internal/i18n"
	"iasmeen/internal/logging"
	"iasmeen/internal/report"
	"iasmeen/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Exporter saves the rendered report.
type Exporter interface {
	Markdown(md string) (string, error)
}

// inputMode is what enter submits.
type inputMode int

const (
	modeSearch inputMode = iota
	modeUpload
)

// Messages for tea updates
type (
	// stateMsg tells the model the session changed. The model re-reads the
	// snapshot instead of trusting the payload, so late deliveries from
	// superseded calls cannot roll the screen back.
	stateMsg struct{}

	noticeMsg struct {
		text  string
		isErr bool
	}
)

// Model is the dashboard bubbletea model.
type Model struct {
	// UI Components
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   Styles
	renderer *glamour.TermRenderer

	// Backend
	sess     *session.Session
	loc      *i18n.Localizer
	exporter Exporter
	ctx      context.Context

	// State
	state   session.State
	mode    inputMode
	notice  string
	noticeE bool
}

// New creates the dashboard model over sess.
func New(ctx context.Context, sess *session.Session, loc *i18n.Localizer, exporter Exporter, styles Styles) Model {
	ti := textinput.New()
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 512
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	m := Model{
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		styles:   styles,
		renderer: newRenderer(styles, 80),
		sess:     sess,
		loc:      loc,
		exporter: exporter,
		ctx:      ctx,
		state:    sess.Snapshot(),
	}
	m.refresh()
	return m
}

func newRenderer(styles Styles, width int) *glamour.TermRenderer {
	style := glamour.WithAutoStyle()
	if !styles.Theme.IsDark {
		style = glamour.WithStylePath("light")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		logging.Get(logging.CategoryUI).Warn("markdown renderer unavailable: %v", err)
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 6
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-9, 3)
		m.renderer = newRenderer(m.styles, max(msg.Width-8, 20))
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stateMsg:
		m.state = m.sess.Snapshot()
		m.refresh()
		return m, nil

	case noticeMsg:
		m.notice = msg.text
		m.noticeE = msg.isErr
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vm := session.View(m.state)

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.mode == modeUpload {
			m.setMode(modeSearch)
		}
		return m, nil

	case "tab":
		if m.mode == modeSearch {
			if _, err := m.sess.SelectTarget(m.state.Target.Next()); err == nil {
				m.state = m.sess.Snapshot()
				m.updatePlaceholder()
			}
		}
		return m, nil

	case "ctrl+o":
		if m.mode == modeUpload {
			m.setMode(modeSearch)
		} else {
			m.setMode(modeUpload)
		}
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			return m, nil
		}
		m.notice = ""
		if m.mode == modeUpload {
			m.setMode(modeSearch)
			return m, m.upload(value)
		}
		if !vm.CanSearch {
			return m, nil
		}
		m.input.SetValue("")
		return m, m.search(value)

	case "ctrl+r":
		if !m.state.CanReview() {
			return m, nil
		}
		return m, m.reliability()

	case "ctrl+n":
		if vm.CanNewSearch {
			m.sess.Reset()
			m.state = m.sess.Snapshot()
			m.input.SetValue("")
			m.notice = ""
			m.refresh()
		}
		return m, nil

	case "ctrl+l":
		m.loc.Toggle()
		m.refresh()
		return m, nil

	case "ctrl+e":
		if !vm.CanExport || m.exporter == nil {
			return m, nil
		}
		return m, m.export(report.Markdown(m.loc, m.state))

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) setMode(mode inputMode) {
	if mode != m.mode {
		m.input.SetValue("")
	}
	m.mode = mode
	m.updatePlaceholder()
}

func (m *Model) updatePlaceholder() {
	key := "searchPlaceholder." + string(m.state.Target)
	if m.mode == modeUpload {
		key = "searchPlaceholder.upload"
	}
	m.input.Placeholder = m.loc.T(key)
}

// Session calls block until the producer settles, so each runs as a Cmd.

func (m Model) search(subject string) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		if _, err := sess.Search(ctx, subject); err != nil {
			return noticeMsg{text: err.Error(), isErr: true}
		}
		return stateMsg{}
	}
}

func (m Model) upload(path string) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return noticeMsg{text: err.Error(), isErr: true}
		}
		// Decode failures land in the state's upload error.
		_, _ = sess.Upload(ctx, filepath.Base(path), data)
		return stateMsg{}
	}
}

func (m Model) reliability() tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		if _, err := sess.RequestReliability(ctx); err != nil {
			return noticeMsg{text: err.Error(), isErr: true}
		}
		return stateMsg{}
	}
}

func (m Model) export(md string) tea.Cmd {
	exp, prefix := m.exporter, m.loc.T("exported")
	return func() tea.Msg {
		path, err := exp.Markdown(md)
		if err != nil {
			return noticeMsg{text: err.Error(), isErr: true}
		}
		return noticeMsg{text: prefix + path}
	}
}

// refresh re-renders the report into the viewport.
func (m *Model) refresh() {
	m.updatePlaceholder()
	md := report.Markdown(m.loc, m.state)
	if md == "" {
		m.viewport.SetContent("")
		return
	}
	if m.renderer != nil {
		if out, err := m.renderer.Render(md); err == nil {
			md = out
		}
	}
	m.viewport.SetContent(md)
}

func (m Model) View() string {
	var b strings.Builder
	vm := session.View(m.state)

	header := m.styles.Header.Render(m.loc.T("title")) + " " +
		m.styles.Subtitle.Render(m.loc.T("subtitle")) + " " +
		m.styles.Badge.Render(strings.ToUpper(string(m.loc.Language())))
	b.WriteString(header + "\n")

	b.WriteString(m.renderTabs() + "\n")
	b.WriteString(m.input.View() + "\n")

	switch vm.Panel {
	case session.PanelLoading:
		b.WriteString(m.styles.Content.Render(m.spinner.View()+" "+m.loc.T("loading")) + "\n")
	case session.PanelError:
		b.WriteString(m.styles.Content.Render(m.styles.Error.Render(m.loc.T("error"))+" "+vm.Error) + "\n")
	case session.PanelResult:
		b.WriteString(m.viewport.View() + "\n")
	default:
		b.WriteString(m.styles.Content.Render(m.styles.Muted.Render(m.loc.T("noResults"))) + "\n")
	}

	if line := m.reliabilityLine(vm); line != "" {
		b.WriteString(m.styles.Content.Render(line) + "\n")
	}
	if vm.UploadError != "" {
		b.WriteString(m.styles.Content.Render(m.styles.Error.Render(m.loc.T("uploadError"))+vm.UploadError) + "\n")
	}
	if m.notice != "" {
		style := m.styles.Success
		if m.noticeE {
			style = m.styles.Error
		}
		b.WriteString(m.styles.Content.Render(style.Render(m.notice)) + "\n")
	}

	b.WriteString(m.styles.Footer.Render(m.loc.T("help")))
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(analysis.TargetKinds)+1)
	for _, kind := range analysis.TargetKinds {
		label := m.loc.T("tabs." + string(kind))
		if m.mode == modeSearch && kind == m.state.Target {
			tabs = append(tabs, m.styles.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, m.styles.Tab.Render(label))
		}
	}
	upload := m.styles.Tab
	if m.mode == modeUpload {
		upload = m.styles.ActiveTab
	}
	tabs = append(tabs, upload.Render(m.loc.T("beda.title")))
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) reliabilityLine(vm session.ViewModel) string {
	switch vm.Reliability {
	case session.ReliabilityOffer:
		return m.styles.Info.Render("ctrl+r: " + m.loc.T("fira.runAnalysis"))
	case session.ReliabilityLoading:
		return m.spinner.View() + " " + m.loc.T("fira.loading")
	case session.ReliabilityError:
		return m.styles.Error.Render(m.loc.T("fira.error")) + " " + m.state.Reliability.Err
	}
	return ""
}

// Run starts the dashboard and blocks until the user quits. Session changes
// made by in-flight calls are pushed to the program as they happen.
func Run(ctx context.Context, sess *session.Session, loc *i18n.Localizer, exporter Exporter, styles Styles) error {
	p := tea.NewProgram(
		New(ctx, sess, loc, exporter, styles),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	sess.OnChange(func(session.State) { p.Send(stateMsg{}) })

	_, err := p.Run()
	return err
}

