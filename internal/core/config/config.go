package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "vskip"
	DBFileName     = "vskip.db"
	EnvPrefix      = "VSKIP"
)

// ConfigDir returns the standard config directory for vskip.
// Windows: %APPDATA%\vskip\
// macOS/Linux: ~/.config/vskip/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the settings file.
// e.g., ~/.config/vskip/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Settings are the process-level settings of a vskip run. The skip
// configuration itself lives in the store, see Config.
type Settings struct {
	// Language for toasts and CLI messages ("zh", "en")
	Language string `mapstructure:"language" yaml:"language,omitempty"`

	// DBPath is the sqlite file backing the store
	DBPath string `mapstructure:"db_path" yaml:"db_path,omitempty"`

	// LogLevel is a zerolog level name
	LogLevel string `mapstructure:"log_level" yaml:"log_level,omitempty"`

	Browser BrowserSettings `mapstructure:"browser" yaml:"browser,omitempty"`

	// Server configuration for `vskip serve`
	Server ServerSettings `mapstructure:"server" yaml:"server,omitempty"`
}

// BrowserSettings controls the Chrome instance driven by `vskip watch`.
type BrowserSettings struct {
	// Visible shows the browser window (default true, a skipper is for watching)
	Visible bool `mapstructure:"visible" yaml:"visible"`

	// Bin overrides the browser binary (ROD_BROWSER also works)
	Bin string `mapstructure:"bin" yaml:"bin,omitempty"`

	// ImportCookies copies the user's browser cookies for the watched site
	ImportCookies bool `mapstructure:"import_cookies" yaml:"import_cookies,omitempty"`

	// UserDataDir for the browser profile
	UserDataDir string `mapstructure:"user_data_dir" yaml:"user_data_dir,omitempty"`
}

// ServerSettings holds HTTP server settings for `vskip serve`
type ServerSettings struct {
	// Port is the HTTP listen port (default: 8787)
	Port int `mapstructure:"port" yaml:"port,omitempty"`

	// APIKey for authentication (optional, if set all requests must include X-API-Key header)
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// DefaultSettings returns settings with sensible defaults
func DefaultSettings() *Settings {
	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	return &Settings{
		Language: "zh",
		DBPath:   filepath.Join(dir, DBFileName),
		LogLevel: "info",
		Browser: BrowserSettings{
			Visible:     true,
			UserDataDir: filepath.Join(dir, "browser"),
		},
		Server: ServerSettings{Port: 8787},
	}
}

// NewViper returns a viper instance bound to the settings file, VSKIP_* env
// vars and the defaults. Flags are bound by the CLI.
func NewViper() *viper.Viper {
	v := viper.New()
	def := DefaultSettings()

	v.SetDefault("language", def.Language)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("browser.visible", def.Browser.Visible)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.import_cookies", false)
	v.SetDefault("browser.user_data_dir", def.Browser.UserDataDir)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.api_key", "")

	if path, err := ConfigPath(); err == nil {
		v.SetConfigFile(path)
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadSettings reads the settings file (a missing file is fine) and decodes
// the merged view of file, env, flags and defaults.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	s.DBPath = expandPath(s.DBPath)
	s.Browser.UserDataDir = expandPath(s.Browser.UserDataDir)
	return s, nil
}

// WatchSettings calls fn with freshly decoded settings whenever the file changes.
func WatchSettings(v *viper.Viper, fn func(*Settings, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		s := &Settings{}
		if err := v.Unmarshal(s); err != nil {
			fn(nil, fmt.Errorf("failed to decode settings: %w", err))
			return
		}
		fn(s, nil)
	})
	v.WatchConfig()
}

// Exists checks if the settings file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes to ensure cross-platform compatibility
// for configuration files.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		// Only expand if it's explicitly "~", "~/", or "~\"
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// SaveSettings writes the settings to ~/.config/vskip/config.yml
func SaveSettings(s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# vskip settings file\n# Skip times, presets and rules live in the database: see 'vskip config show'\n\n"
	return os.WriteFile(configPath, []byte(header+string(data)), 0644)
}

// SavePath returns the path where settings will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return SaveSettings(DefaultSettings())
}
