package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/ocio-updater/internal/domain/ocio"
)

// Config holds the updater settings.
type Config struct {
	// Source selects which repository releases are pulled from.
	Source ocio.Source `yaml:"source"`
	// CustomURL is the repository URL used with the custom source.
	CustomURL string `yaml:"custom_url,omitempty"`
	// Repositories holds the URLs of the named sources.
	Repositories Repositories `yaml:"repositories"`
	// Branch switches from the latest release to the zip of a branch head.
	Branch string `yaml:"branch,omitempty"`
	// InstallDir overrides the InstallTarget derived from the host paths.
	InstallDir string `yaml:"install_dir,omitempty"`
	// HostVersion is the host application version folder, e.g. "4.1".
	HostVersion string `yaml:"host_version"`
	// HostProcess is the executable name of the host, used for the restart hint.
	HostProcess string `yaml:"host_process"`
	// Timeout bounds each outbound HTTP request.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level written to the log.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Repositories maps the named sources to their repository URLs.
type Repositories struct {
	// AIOOCIO is the repository behind ocio.SourceAIOOCIO.
	AIOOCIO string `yaml:"aio_ocio"`
	// PixelManager is the repository behind ocio.SourcePixelManager.
	PixelManager string `yaml:"pixel_manager"`
}

const (
	// DefaultConfigFilename is the default filename for the settings.
	DefaultConfigFilename = "ocio-updater.yaml"

	// DefaultTimeout is the per-request network timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultHostVersion is the host version folder used when none is configured.
	DefaultHostVersion = "4.1"

	// DefaultHostProcess is the executable name of the host application.
	DefaultHostProcess = "blender"

	// DefaultAIOOCIORepository is the repository of the AIO-OCIO source.
	DefaultAIOOCIORepository = "https://github.com/RolandVyens/AIO-OCIO"

	// DefaultPixelManagerRepository is the repository of the PixelManager source.
	DefaultPixelManagerRepository = "https://github.com/Joegenco/PixelManager"

	// BackupSuffix is appended to the InstallTarget path to form the backup path.
	BackupSuffix = "_backup"

	// DefaultFilePermissions is the default file permission for settings files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is used for directories created by the updater.
	DefaultDirPermissions = 0o755
)

var (
	// ErrNoRepository is returned when the selected source has no repository URL.
	ErrNoRepository = errors.New("no repository URL configured")

	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
)

// Default returns settings with every default applied.
func Default() *Config {
	cfg := new(Config)

	// Defaults never fail validation.
	_ = Validate(cfg)

	return cfg
}

// DefaultPath returns the settings location inside the user config directory,
// falling back to the working directory when it is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFilename
	}

	return filepath.Join(dir, "ocio-updater", DefaultConfigFilename)
}

// Load reads settings from the provided path and validates them.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path, creating the parent directory.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultPath()
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	path = filepath.Clean(path)
	if err = os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	// Restrict permissions.
	if err = os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the provided settings for formatting.
// An empty custom URL is not a validation error: it is reported when an
// install is requested, so the panel can still open and ask for one.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.Source == "" {
		settings.Source = ocio.SourceAIOOCIO
	}

	source, err := ocio.ParseSource(string(settings.Source))
	if err != nil {
		return err
	}

	settings.Source = source

	if settings.Repositories.AIOOCIO == "" {
		settings.Repositories.AIOOCIO = DefaultAIOOCIORepository
	}

	if settings.Repositories.PixelManager == "" {
		settings.Repositories.PixelManager = DefaultPixelManagerRepository
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.HostVersion == "" {
		settings.HostVersion = DefaultHostVersion
	}

	if settings.HostProcess == "" {
		settings.HostProcess = DefaultHostProcess
	}

	settings.CustomURL = strings.TrimSpace(settings.CustomURL)
	settings.Branch = strings.TrimSpace(settings.Branch)

	for _, raw := range []string{settings.Repositories.AIOOCIO, settings.Repositories.PixelManager, settings.CustomURL} {
		if raw == "" {
			continue
		}

		if err = ValidateRepositoryURL(raw); err != nil {
			return err
		}
	}

	return nil
}

// ValidateRepositoryURL checks that raw is an absolute repository URL.
func ValidateRepositoryURL(raw string) error {
	if _, err := url.ParseRequestURI(raw); err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}

	return nil
}

// RepositoryURL returns the repository URL of the selected source.
func (c *Config) RepositoryURL() (string, error) {
	var repoURL string

	switch c.Source {
	case ocio.SourceAIOOCIO:
		repoURL = c.Repositories.AIOOCIO
	case ocio.SourcePixelManager:
		repoURL = c.Repositories.PixelManager
	case ocio.SourceCustom:
		repoURL = c.CustomURL
	}

	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return "", fmt.Errorf("source %s: %w", c.Source, ErrNoRepository)
	}

	return repoURL, nil
}

// InstallTarget returns the directory that receives the configuration tree.
func (c *Config) InstallTarget() (string, error) {
	if c.InstallDir != "" {
		return filepath.Clean(c.InstallDir), nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}

	return filepath.Join(hostUserPath(configDir, c.HostVersion), "datafiles", "colormanagement"), nil
}

// BackupPath returns the path of the single retained backup generation.
func BackupPath(installTarget string) string {
	return filepath.Clean(installTarget) + BackupSuffix
}

// hostUserPath mirrors the layout the host uses for its per-user resources.
func hostUserPath(configDir, hostVersion string) string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(configDir, "Blender Foundation", "Blender", hostVersion)
	case "darwin":
		return filepath.Join(configDir, "Blender", hostVersion)
	default:
		return filepath.Join(configDir, "blender", hostVersion)
	}
}
