package updater

import "time"

// PollInterval is how often the foreground checks on the worker.
const PollInterval = 100 * time.Millisecond

// Level is the severity of a host notification.
type Level int

const (
	// LevelInfo reports a successful install.
	LevelInfo Level = iota
	// LevelWarning reports a rejected request, e.g. a second install.
	LevelWarning
	// LevelError reports a failed install.
	LevelError
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Host is the part of the hosting UI the updater talks to.
type Host interface {
	// ReportStatus shows a user-facing notification.
	ReportStatus(level Level, message string)
	// RedrawStatusRegion refreshes the panel that shows progress.
	RedrawStatusRegion()
}
