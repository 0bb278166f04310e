package updater

import (
	"os"
	"path/filepath"

	"github.com/oshokin/ocio-updater/internal/service/installer"
)

// InstallState describes what the InstallTarget currently holds.
type InstallState int

const (
	// StateNoConfig means no host config is present.
	StateNoConfig InstallState = iota
	// StateCustomConfig means a host config exists but was not installed from a known release.
	StateCustomConfig
	// StateInstalled means a release with the shipped config is installed.
	StateInstalled
)

// String returns the label shown in the status panel.
func (s InstallState) String() string {
	switch s {
	case StateInstalled:
		return "AIO-OCIO is installed"
	case StateCustomConfig:
		return "Custom OCIO detected"
	default:
		return "No OCIO config found"
	}
}

// ActionLabel returns the label of the install button for this state.
func (s InstallState) ActionLabel() string {
	if s == StateInstalled {
		return "Update"
	}

	return "Install"
}

// InstallState inspects the InstallTarget.
func (u *Updater) InstallState() InstallState {
	target := u.installer.Target()

	if !exists(filepath.Join(target, installer.HostConfigName)) {
		return StateNoConfig
	}

	if exists(filepath.Join(target, installer.SourceConfigName)) {
		return StateInstalled
	}

	return StateCustomConfig
}

func exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
