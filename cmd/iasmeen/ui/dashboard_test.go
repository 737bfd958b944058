package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"iasmeen/internal/analysis"
	"iasmeen/internal/i18n"
	"iasmeen/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct{}

func (fakeAnalyzer) Dispatch(_ context.Context, kind analysis.TargetKind, subject string) (analysis.Result, error) {
	if strings.HasPrefix(subject, "fail.") {
		return nil, errors.New("failed to fetch WHOIS data: upstream unavailable")
	}
	return analysis.WhoisResult{Data: analysis.WhoisRecord{
		DomainName:   subject,
		Registrar:    "Example Registrar",
		CreationDate: "1995-08-14",
		ExpiryDate:   "2030-08-13",
		NameServers:  []string{"a.iana-servers.net"},
	}}, nil
}

func (fakeAnalyzer) Review(_ context.Context, _ analysis.Result, _ string) (*analysis.ReliabilityReview, error) {
	return &analysis.ReliabilityReview{
		Reliability: analysis.ReliabilityHigh,
		Summary:     "Consistent dates",
		Findings:    []analysis.Finding{{Description: "Creation precedes expiry", Status: analysis.StatusPositive}},
	}, nil
}

type fakeExporter struct {
	md string
}

func (f *fakeExporter) Markdown(md string) (string, error) {
	f.md = md
	return "/tmp/iasmeen_report.md", nil
}

func newTestModel(t *testing.T) (Model, *fakeExporter) {
	t.Helper()
	loc, err := i18n.New(i18n.French)
	require.NoError(t, err)
	exp := &fakeExporter{}
	sess := session.New(fakeAnalyzer{})
	return New(context.Background(), sess, loc, exp, NewStyles(LightTheme())), exp
}

// press sends a key and runs whatever command it returns, feeding the
// resulting message back in.
func press(t *testing.T, m Model, key tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(key)
	m = next.(Model)
	return run(t, m, cmd)
}

func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case stateMsg, noticeMsg:
		next, _ := m.Update(msg)
		return next.(Model)
	}
	return m
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func TestTabCyclesTargets(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, analysis.TargetDomain, m.state.Target)

	want := []analysis.TargetKind{analysis.TargetIP, analysis.TargetEmail, analysis.TargetDomain}
	for _, kind := range want {
		m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
		assert.Equal(t, kind, m.state.Target)
		assert.Equal(t, m.loc.T("searchPlaceholder."+string(kind)), m.input.Placeholder)
	}
}

func TestSearchSettlesAndRendersReport(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeText(t, m, "example.com")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Equal(t, session.PhaseSettled, m.state.Primary.Phase)
	assert.Equal(t, "example.com", m.state.Primary.Result.Subject())
	assert.Empty(t, m.input.Value())
	assert.Equal(t, session.PanelResult, session.View(m.state).Panel)
	assert.Contains(t, m.View(), "IASMEEN")
}

func TestBlankEnterDoesNothing(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeText(t, m, "   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestFailedSearchShowsError(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeText(t, m, "fail.example")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	vm := session.View(m.state)
	assert.Equal(t, session.PanelError, vm.Panel)
	assert.Contains(t, vm.Error, "upstream unavailable")
	assert.Contains(t, m.View(), "upstream unavailable")
}

func TestReliabilityRunsOnce(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Nil(t, cmd, "no result to review yet")

	m = typeText(t, m, "example.com")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})

	require.Equal(t, session.PhaseSettled, m.state.Reliability.Phase)
	assert.Equal(t, analysis.ReliabilityHigh, m.state.Reliability.Review.Reliability)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Nil(t, cmd, "a finished review is not requested again")
}

func TestNewSearchResets(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeText(t, m, "example.com")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})

	assert.Equal(t, session.PhaseIdle, m.state.Primary.Phase)
	assert.Nil(t, m.state.Primary.Result)
	assert.Equal(t, session.PanelEmpty, session.View(m.state).Panel)
}

func TestLanguageToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})

	assert.Equal(t, i18n.English, m.loc.Language())
	assert.Equal(t, "Enter a domain name (e.g. example.com)", m.input.Placeholder)
}

func TestExportMarkdown(t *testing.T) {
	m, exp := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.Nil(t, cmd, "nothing to export")

	m = typeText(t, m, "example.com")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})

	assert.Contains(t, exp.md, "example.com")
	assert.Equal(t, m.loc.T("exported")+"/tmp/iasmeen_report.md", m.notice)
	assert.False(t, m.noticeE)
}

func TestUploadDecodeErrorKeepsResult(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeText(t, m, "example.com")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	path := filepath.Join(t.TempDir(), "notes.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Equal(t, modeUpload, m.mode)
	assert.Equal(t, m.loc.T("searchPlaceholder.upload"), m.input.Placeholder)

	m = typeText(t, m, path)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, modeSearch, m.mode)
	assert.NotEmpty(t, m.state.UploadErr)
	require.NotNil(t, m.state.Primary.Result)
	assert.Equal(t, "example.com", m.state.Primary.Result.Subject())
}

func TestUploadMissingFile(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	m = typeText(t, m, filepath.Join(t.TempDir(), "missing.png"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.True(t, m.noticeE)
	assert.NotEmpty(t, m.notice)
}

func TestEscLeavesUploadMode(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeSearch, m.mode)
}

func TestCtrlCQuits(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
