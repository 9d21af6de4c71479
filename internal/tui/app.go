// Package tui is the terminal browser: a repository table, a settings
// panel and a form that proposes a collaborator.
package tui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rigdev/repogov/internal/artifact"
	"github.com/rigdev/repogov/internal/codehost"
	"github.com/rigdev/repogov/internal/core"
	"github.com/rigdev/repogov/internal/directory"
	"github.com/rigdev/repogov/internal/proposal"
)

// Directory lists repositories and reads their settings.
type Directory interface {
	List(ctx context.Context, cred codehost.Credential) ([]codehost.Repository, error)
	Inspect(ctx context.Context, cred codehost.Credential, owner, name string) (*directory.Settings, error)
}

// Proposer opens collaborator proposals.
type Proposer interface {
	ProposeCollaborator(ctx context.Context, cred codehost.Credential, repo proposal.RepositoryRef, c artifact.Collaborator) (*core.Outcome, error)
}

// --- state ---

type appState int

const (
	stateNormal appState = iota
	stateSettings
	stateCollaborator
)

// --- styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	dimStyle   = lipgloss.NewStyle().Faint(true)
	boldStyle  = lipgloss.NewStyle().Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	labelStyle = lipgloss.NewStyle().Faint(true)

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(2)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(64)
)

// --- messages ---

type reposLoadedMsg struct {
	repos []codehost.Repository
	err   error
}

type settingsLoadedMsg struct {
	settings *directory.Settings
	err      error
}

type proposalDoneMsg struct {
	outcome *core.Outcome
	err     error
}

// --- model ---

// Model is the bubbletea model of the browser.
type Model struct {
	dir      Directory
	proposer Proposer
	cred     codehost.Credential

	table   table.Model
	repos   []codehost.Repository
	width   int
	height  int
	loading bool
	err     error
	notice  string

	state       appState
	settings    *directory.Settings
	settingsErr error
	submitting  bool

	userInput  textinput.Model
	permission int
	inputErr   string
}

// New creates the browser. defaultPermission preselects the permission
// of the collaborator form.
func New(dir Directory, proposer Proposer, cred codehost.Credential, defaultPermission string) Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	ti := textinput.New()
	ti.Placeholder = "github_username"
	ti.CharLimit = 39

	perm := 0
	for i, p := range artifact.Permissions {
		if p == defaultPermission {
			perm = i
		}
	}

	return Model{
		dir:        dir,
		proposer:   proposer,
		cred:       cred,
		table:      t,
		loading:    true,
		userInput:  ti,
		permission: perm,
	}
}

func columns(width int) []table.Column {
	name := width / 4
	if name < 16 {
		name = 16
	}
	desc := width - name - 14 - 10 - 8
	if desc < 10 {
		desc = 10
	}
	return []table.Column{
		{Title: "Repository", Width: name},
		{Title: "Description", Width: desc},
		{Title: "Default", Width: 14},
		{Title: "Visibility", Width: 10},
	}
}

func repoRows(repos []codehost.Repository) []table.Row {
	rows := make([]table.Row, len(repos))
	for i, r := range repos {
		visibility := "public"
		if r.Private {
			visibility = "private"
		}
		rows[i] = table.Row{r.FullName, r.Description, r.DefaultBranch, visibility}
	}
	return rows
}

// --- commands ---

func (m Model) fetchRepos() tea.Msg {
	repos, err := m.dir.List(context.Background(), m.cred)
	return reposLoadedMsg{repos: repos, err: err}
}

func (m Model) fetchSettings(r codehost.Repository) tea.Cmd {
	return func() tea.Msg {
		s, err := m.dir.Inspect(context.Background(), m.cred, r.Owner, r.Name)
		return settingsLoadedMsg{settings: s, err: err}
	}
}

func (m Model) proposeCmd(r codehost.Repository, c artifact.Collaborator) tea.Cmd {
	return func() tea.Msg {
		out, err := m.proposer.ProposeCollaborator(context.Background(), m.cred,
			proposal.RepositoryRef{Owner: r.Owner, Name: r.Name}, c)
		return proposalDoneMsg{outcome: out, err: err}
	}
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
		_ = cmd.Run()
		return nil
	}
}

// --- tea.Model ---

func (m Model) Init() tea.Cmd {
	return m.fetchRepos
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width - 4))
		m.table.SetHeight(max(msg.Height-6, 3))
		return m, nil

	case reposLoadedMsg:
		m.loading = false
		m.repos = msg.repos
		m.table.SetRows(repoRows(msg.repos))
		m.err = msg.err
		return m, nil

	case settingsLoadedMsg:
		m.settings = msg.settings
		m.settingsErr = msg.err
		return m, nil

	case proposalDoneMsg:
		m.submitting = false
		if msg.err != nil {
			m.inputErr = msg.err.Error()
			return m, nil
		}
		m.state = stateNormal
		m.inputErr = ""
		m.userInput.Reset()
		m.userInput.Blur()
		m.notice = fmt.Sprintf("Opened pull request #%d %s",
			msg.outcome.Result.PullRequest.Number, msg.outcome.Result.PullRequest.URL)
		return m, nil
	}

	switch m.state {
	case stateSettings:
		return m.updateSettings(msg)
	case stateCollaborator:
		return m.updateCollaborator(msg)
	default:
		return m.updateNormal(msg)
	}
}

func (m Model) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.notice = ""
			return m, m.fetchRepos
		case "enter", "s":
			r := m.selectedRepo()
			if r == nil {
				return m, nil
			}
			m.state = stateSettings
			m.settings = nil
			m.settingsErr = nil
			return m, m.fetchSettings(*r)
		case "a":
			if m.selectedRepo() == nil {
				return m, nil
			}
			m.state = stateCollaborator
			m.inputErr = ""
			m.notice = ""
			m.userInput.Reset()
			m.userInput.Focus()
			return m, textinput.Blink
		case "o":
			r := m.selectedRepo()
			if r != nil && r.HTMLURL != "" {
				return m, openURLCmd(r.HTMLURL)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateSettings(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc", "q", "enter":
			m.state = stateNormal
			return m, nil
		}
	}
	return m, nil
}

func (m Model) updateCollaborator(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.state = stateNormal
			m.inputErr = ""
			m.userInput.Blur()
			return m, nil
		case "tab", "right":
			m.permission = (m.permission + 1) % len(artifact.Permissions)
			return m, nil
		case "shift+tab", "left":
			m.permission = (m.permission + len(artifact.Permissions) - 1) % len(artifact.Permissions)
			return m, nil
		case "enter":
			if m.submitting {
				return m, nil
			}
			username := strings.TrimSpace(m.userInput.Value())
			if username == "" {
				m.inputErr = "username cannot be empty"
				return m, nil
			}
			r := m.selectedRepo()
			if r == nil {
				m.inputErr = "no repository selected"
				return m, nil
			}
			m.inputErr = ""
			m.submitting = true
			return m, m.proposeCmd(*r, artifact.Collaborator{
				Username:   username,
				Permission: artifact.Permissions[m.permission],
			})
		}
	}
	var cmd tea.Cmd
	m.userInput, cmd = m.userInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	if m.loading {
		return lipgloss.NewStyle().Padding(1, 2).Render("Loading repositories…")
	}

	if m.err != nil && len(m.repos) == 0 {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit.", m.err),
		)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Repositories") + "\n\n")
	b.WriteString(m.table.View() + "\n")
	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()) + "\n")
	}
	if m.notice != "" {
		b.WriteString(okStyle.Render(m.notice) + "\n")
	}
	base := b.String() + m.renderHelp()

	switch m.state {
	case stateSettings:
		return m.renderOver(m.renderSettings())
	case stateCollaborator:
		return m.renderOver(m.renderCollaborator())
	}
	return base
}

// --- layout helpers ---

func (m Model) renderSettings() string {
	var b strings.Builder
	title := "Settings"
	if r := m.selectedRepo(); r != nil {
		title = r.FullName
	}
	b.WriteString(boldStyle.Render(title) + "\n\n")

	if m.settings == nil && m.settingsErr == nil {
		b.WriteString(dimStyle.Render("Loading settings…"))
		return b.String()
	}

	b.WriteString(labelStyle.Render("Protected branches") + "\n")
	if m.settings == nil || len(m.settings.ProtectedBranches) == 0 {
		b.WriteString(dimStyle.Render("  none") + "\n")
	} else {
		for _, br := range m.settings.ProtectedBranches {
			b.WriteString("  " + br + "\n")
		}
	}

	b.WriteString("\n" + labelStyle.Render("Webhooks") + "\n")
	if m.settings == nil || len(m.settings.Webhooks) == 0 {
		b.WriteString(dimStyle.Render("  none") + "\n")
	} else {
		for _, h := range m.settings.Webhooks {
			state := okStyle.Render("active")
			if !h.Active {
				state = dimStyle.Render("inactive")
			}
			b.WriteString(fmt.Sprintf("  %s %s\n", h.URL, state))
		}
	}

	if m.settingsErr != nil {
		b.WriteString("\n" + errStyle.Render(m.settingsErr.Error()) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Esc to close"))
	return b.String()
}

func (m Model) renderCollaborator() string {
	var b strings.Builder
	b.WriteString(boldStyle.Render("Add Collaborator") + "\n\n")
	if r := m.selectedRepo(); r != nil {
		b.WriteString(dimStyle.Render(r.FullName) + "\n\n")
	}
	b.WriteString("Username\n")
	b.WriteString(m.userInput.View() + "\n\n")

	b.WriteString("Permission\n")
	perms := make([]string, len(artifact.Permissions))
	for i, p := range artifact.Permissions {
		if i == m.permission {
			perms[i] = boldStyle.Render("[" + p + "]")
		} else {
			perms[i] = dimStyle.Render(p)
		}
	}
	b.WriteString(strings.Join(perms, " ") + "\n")

	if m.submitting {
		b.WriteString("\n" + dimStyle.Render("Opening pull request…") + "\n")
	}
	if m.inputErr != "" {
		b.WriteString("\n" + errStyle.Render(m.inputErr) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Tab permission · Enter propose · Esc cancel"))
	return b.String()
}

func (m Model) renderHelp() string {
	text := "↑/↓ navigate   Enter settings   a add collaborator   o open   r refresh   q quit"
	sep := dimStyle.Render(strings.Repeat("─", m.width))
	return sep + "\n" + helpStyle.Render(text)
}

func (m Model) renderOver(content string) string {
	modal := modalStyle.Render(content)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) selectedRepo() *codehost.Repository {
	if len(m.repos) == 0 {
		return nil
	}
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.repos) {
		return nil
	}
	return &m.repos[idx]
}
