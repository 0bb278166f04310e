package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oshokin/ocio-updater/internal/service/updater"
)

type tickMsg struct{}

type checkResultMsg struct {
	result *updater.CheckResult
	err    error
}

type openResultMsg struct {
	url string
	err error
}

func scheduleTick() tea.Cmd {
	return tea.Tick(updater.PollInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func checkCmd(ctx context.Context, u *updater.Updater, repoURL, branch string) tea.Cmd {
	return func() tea.Msg {
		result, err := u.CheckRepository(ctx, repoURL, branch)

		return checkResultMsg{result: result, err: err}
	}
}

func openCmd(ctx context.Context, open func(context.Context, string) error, repoURL string) tea.Cmd {
	return func() tea.Msg {
		return openResultMsg{url: repoURL, err: open(ctx, repoURL)}
	}
}
