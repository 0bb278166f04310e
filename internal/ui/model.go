package ui

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/oshokin/ocio-updater/internal/config"
	"github.com/oshokin/ocio-updater/internal/domain/ocio"
	"github.com/oshokin/ocio-updater/internal/logger"
	"github.com/oshokin/ocio-updater/internal/service/common"
	"github.com/oshokin/ocio-updater/internal/service/progress"
	"github.com/oshokin/ocio-updater/internal/service/resolver"
	"github.com/oshokin/ocio-updater/internal/service/updater"
)

const (
	urlPlaceholder = "https://github.com/owner/repository"
	noURLMessage   = "Enter a repository URL first (press e)"
)

// Model is the Bubble Tea model of the updater panel. It is also the
// updater's Host.
type Model struct {
	ctx        context.Context
	updater    *updater.Updater
	cfg        *config.Config
	configPath string
	keys       KeyMap
	sources    []ocio.Source
	cursor     int

	urlInput textinput.Model
	editing  bool

	// Status region, refreshed by RedrawStatusRegion.
	snapshot     progress.Snapshot
	installState updater.InstallState
	record       *ocio.VersionRecord

	check    *updater.CheckResult
	checking bool

	notice      string
	noticeLevel updater.Level

	width    int
	polling  bool
	quitting bool

	openURL func(ctx context.Context, rawURL string) error
}

// New creates the panel. Settings changes are saved to configPath; an empty
// path keeps them in memory only.
func New(ctx context.Context, u *updater.Updater, cfg *config.Config, configPath string) *Model {
	input := textinput.New()
	input.Placeholder = urlPlaceholder
	input.CharLimit = 256
	input.Width = 48
	input.SetValue(cfg.CustomURL)

	m := &Model{
		ctx:        logger.WithName(ctx, "ui"),
		updater:    u,
		cfg:        cfg,
		configPath: configPath,
		keys:       DefaultKeyMap(),
		sources:    ocio.Sources(),
		urlInput:   input,
		openURL:    common.OpenBrowser,
	}

	if index := slices.Index(m.sources, cfg.Source); index >= 0 {
		m.cursor = index
	}

	m.refreshInstallInfo()
	m.RedrawStatusRegion()

	return m
}

// Init starts polling when an install is already running.
func (m *Model) Init() tea.Cmd {
	if m.updater.State().Busy() {
		return m.startPolling()
	}

	return nil
}

// ReportStatus implements updater.Host.
func (m *Model) ReportStatus(level updater.Level, message string) {
	m.notice = message
	m.noticeLevel = level

	m.refreshInstallInfo()
	m.RedrawStatusRegion()
}

// RedrawStatusRegion implements updater.Host.
func (m *Model) RedrawStatusRegion() {
	m.snapshot = m.updater.State().Snapshot()
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.updater.Poll(m.ctx, m) || !m.updater.State().Busy() {
			m.polling = false
			return m, nil
		}

		return m, scheduleTick()
	case checkResultMsg:
		m.handleCheckResult(msg)

		return m, nil
	case openResultMsg:
		if msg.err != nil {
			logger.WarnKV(m.ctx, "Could not open repository page", "url", msg.url, "error", msg.err)
			m.ReportStatus(updater.LevelWarning, "Could not open "+msg.url+": "+msg.err.Error())
		}

		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width

		return m, nil
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}

		return m.updateKeys(msg)
	}

	return m, nil
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true

		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.selectSource(m.cursor - 1)
	case key.Matches(msg, m.keys.Down):
		m.selectSource(m.cursor + 1)
	case key.Matches(msg, m.keys.Edit):
		if m.cfg.Source != ocio.SourceCustom {
			m.selectSource(slices.Index(m.sources, ocio.SourceCustom))
		}

		m.editing = true

		return m, m.urlInput.Focus()
	case key.Matches(msg, m.keys.Install):
		return m, m.startInstall()
	case key.Matches(msg, m.keys.Check):
		return m, m.startCheck()
	case key.Matches(msg, m.keys.Open):
		return m, m.openRepository()
	}

	return m, nil
}

func (m *Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.commitURL()

		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.urlInput.Blur()
		m.urlInput.SetValue(m.cfg.CustomURL)

		return m, nil
	}

	var cmd tea.Cmd

	m.urlInput, cmd = m.urlInput.Update(msg)

	return m, cmd
}

func (m *Model) selectSource(index int) {
	if index < 0 || index >= len(m.sources) || index == m.cursor && m.cfg.Source == m.sources[index] {
		return
	}

	m.cursor = index
	m.cfg.Source = m.sources[index]
	m.check = nil

	m.persist()
}

// commitURL stores the edited custom URL when it is an absolute URL naming a
// GitHub repository, the same check settings are saved with.
func (m *Model) commitURL() {
	value := strings.TrimSpace(m.urlInput.Value())

	if value != "" {
		_, slugErr := resolver.Slug(value)
		if slugErr != nil || config.ValidateRepositoryURL(value) != nil {
			m.ReportStatus(updater.LevelError, "Not a GitHub repository URL: "+value)
			return
		}
	}

	m.cfg.CustomURL = value
	m.editing = false
	m.urlInput.Blur()
	m.check = nil

	m.persist()
}

func (m *Model) persist() {
	if m.configPath == "" {
		return
	}

	if err := config.Save(m.configPath, m.cfg); err != nil {
		logger.WarnKV(m.ctx, "Could not save settings", "path", m.configPath, "error", err)
		m.ReportStatus(updater.LevelWarning, "Could not save settings: "+err.Error())
	}
}

// startInstall starts the worker and the poll tick that follows it.
func (m *Model) startInstall() tea.Cmd {
	var cmd tea.Cmd

	err := m.updater.Start(m.ctx)

	switch {
	case err == nil:
		m.notice = ""
		m.check = nil
		cmd = m.startPolling()
	case errors.Is(err, updater.ErrBusy):
		m.ReportStatus(updater.LevelWarning, updater.BusyMessage)
	case errors.Is(err, config.ErrNoRepository):
		m.ReportStatus(updater.LevelError, noURLMessage)
	default:
		m.ReportStatus(updater.LevelError, err.Error())
	}

	m.RedrawStatusRegion()

	return cmd
}

func (m *Model) startPolling() tea.Cmd {
	if m.polling {
		return nil
	}

	m.polling = true

	return scheduleTick()
}

func (m *Model) startCheck() tea.Cmd {
	if m.checking {
		return nil
	}

	repoURL, err := m.cfg.RepositoryURL()
	if err != nil {
		m.ReportStatus(updater.LevelError, noURLMessage)
		return nil
	}

	m.checking = true

	return checkCmd(m.ctx, m.updater, repoURL, m.cfg.Branch)
}

func (m *Model) handleCheckResult(msg checkResultMsg) {
	m.checking = false

	if msg.err != nil {
		m.ReportStatus(updater.LevelError, "Update check failed: "+msg.err.Error())
		return
	}

	m.check = msg.result

	if msg.result.UpdateAvailable {
		m.ReportStatus(updater.LevelInfo, msg.result.Latest.Tag+" is available")
	} else {
		m.ReportStatus(updater.LevelInfo, "Already up to date")
	}
}

func (m *Model) openRepository() tea.Cmd {
	repoURL, err := m.cfg.RepositoryURL()
	if err != nil {
		m.ReportStatus(updater.LevelError, noURLMessage)
		return nil
	}

	return openCmd(m.ctx, m.openURL, repoURL)
}

func (m *Model) refreshInstallInfo() {
	m.installState = m.updater.InstallState()
	m.record = m.updater.Record(m.ctx)
}
