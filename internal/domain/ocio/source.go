package ocio

import (
	"errors"
	"fmt"
	"strings"
)

// Source selects where releases are pulled from.
type Source string

const (
	// SourceAIOOCIO is the AIO-OCIO repository.
	SourceAIOOCIO Source = "aio-ocio"
	// SourcePixelManager is the PixelManager repository.
	SourcePixelManager Source = "pixel-manager"
	// SourceCustom is a repository URL supplied by the user.
	SourceCustom Source = "custom"
)

// errUnknownSource is returned when a string does not name a known source.
var errUnknownSource = errors.New("unknown source")

// Sources returns every selectable source in display order.
func Sources() []Source {
	return []Source{SourceAIOOCIO, SourcePixelManager, SourceCustom}
}

// ParseSource converts user input into a Source.
func ParseSource(s string) (Source, error) {
	candidate := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Sources() {
		if candidate == known {
			return known, nil
		}
	}

	return "", fmt.Errorf("%w: %q", errUnknownSource, s)
}

// Title returns the label shown in the source selector.
func (s Source) Title() string {
	switch s {
	case SourceAIOOCIO:
		return "AIO-OCIO"
	case SourcePixelManager:
		return "PixelManager"
	case SourceCustom:
		return "Custom repository URL"
	default:
		return string(s)
	}
}
