package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/oshokin/ocio-updater/internal/domain/ocio"
	"github.com/oshokin/ocio-updater/internal/service/progress"
	"github.com/oshokin/ocio-updater/internal/service/updater"
)

const recordTimeLayout = "2006-01-02 15:04"

// View renders the panel.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		titleStyle.Render("AIO-OCIO Updater"),
		m.viewSources(),
		m.viewStatus(),
	}

	if notice := m.viewNotice(); notice != "" {
		sections = append(sections, notice)
	}

	sections = append(sections, m.viewHelp())

	style := panelStyle
	if m.width > 0 {
		style = style.MaxWidth(m.width)
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, sections...)) + "\n"
}

func (m *Model) viewSources() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Source"))

	for i, source := range m.sources {
		b.WriteString("\n")

		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + source.Title()))
		} else {
			b.WriteString("  " + source.Title())
		}
	}

	if m.cfg.Source == ocio.SourceCustom || m.editing {
		b.WriteString("\n  URL: ")

		if m.editing {
			b.WriteString(m.urlInput.View())
		} else if m.cfg.CustomURL == "" {
			b.WriteString(mutedStyle.Render("not set"))
		} else {
			b.WriteString(m.cfg.CustomURL)
		}
	}

	return b.String()
}

// viewStatus draws the status region: progress while an install runs,
// the install state and version record otherwise.
func (m *Model) viewStatus() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Status"))
	b.WriteString("\n")

	if m.snapshot.Busy {
		b.WriteString(m.snapshot.Status)
		b.WriteString("\n")
		b.WriteString(barStyle.Render(progress.RenderBar(m.snapshot.Fraction)))

		return b.String()
	}

	switch m.installState {
	case updater.StateInstalled:
		b.WriteString(successStyle.Render("✓ " + m.installState.String()))
	case updater.StateCustomConfig:
		b.WriteString(warningStyle.Render("• " + m.installState.String()))
	default:
		b.WriteString(errorStyle.Render("✗ " + m.installState.String()))
	}

	if m.record != nil {
		b.WriteString("\n")
		b.WriteString("Version: " + m.record.Tag)

		if m.record.Source != "" {
			b.WriteString(" (" + m.record.Source.Title() + ")")
		}

		if !m.record.InstalledDate.IsZero() {
			b.WriteString(mutedStyle.Render(", installed " + m.record.InstalledDate.Local().Format(recordTimeLayout)))
		}
	}

	switch {
	case m.checking:
		b.WriteString("\n" + mutedStyle.Render("Checking for updates..."))
	case m.check != nil:
		line := "Latest: " + m.check.Latest.Tag
		if m.check.UpdateAvailable {
			line += " (update available)"
		}

		b.WriteString("\n" + line)
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Target: " + m.updater.Target()))
	b.WriteString("\n\n")
	b.WriteString(selectedStyle.Render("[" + m.installState.ActionLabel() + " " + m.cfg.Source.Title() + "]"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Restart " + updater.HostTitle(m.cfg.HostProcess) + " after install"))

	return b.String()
}

func (m *Model) viewNotice() string {
	if m.notice == "" {
		return ""
	}

	switch m.noticeLevel {
	case updater.LevelError:
		return errorStyle.Render(m.notice)
	case updater.LevelWarning:
		return warningStyle.Render(m.notice)
	default:
		return successStyle.Render(m.notice)
	}
}

func (m *Model) viewHelp() string {
	bindings := m.keys.ShortHelp()
	if m.editing {
		bindings = m.keys.EditHelp()
	}

	parts := make([]string, 0, len(bindings))

	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, helpKeyStyle.Render(help.Key)+" "+helpDescStyle.Render(help.Desc))
	}

	return strings.Join(parts, helpDescStyle.Render(" • "))
}
