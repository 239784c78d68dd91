package internal

import (
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/numeral/internal/harmony"
	"github.com/starford/numeral/internal/theory"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Library  LibraryConfig     `yaml:"library"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Analysis AnalysisConfig    `yaml:"analysis"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Analysis.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// LibraryConfig holds the chart library directory.
type LibraryConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// AnalysisConfig holds the harmonic analysis defaults.
type AnalysisConfig struct {
	DefaultKey  string          `yaml:"default_key"`
	Workers     int             `yaml:"workers"`
	BarsPerLine int             `yaml:"bars_per_line"`
	Weights     harmony.Weights `yaml:"weights"`
	Display     harmony.Display `yaml:"display"`
}

// Validate validates the analysis configuration.
func (c *AnalysisConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DefaultKey, validation.Required, validation.By(tonic)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.BarsPerLine, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}
	w := &c.Weights
	return validation.ValidateStruct(w,
		validation.Field(&w.Divider, validation.Required, validation.Min(1.0)),
		validation.Field(&w.IIV, validation.Min(0.0)),
		validation.Field(&w.V, validation.Min(0.0)),
		validation.Field(&w.I, validation.Min(0.0)),
		validation.Field(&w.II, validation.Min(0.0)),
		validation.Field(&w.MinorV, validation.Min(0.0)),
		validation.Field(&w.KeyChange, validation.Min(0.0)),
	)
}

func tonic(value interface{}) error {
	s, _ := value.(string)
	if _, err := theory.Scale(s); err != nil {
		return errors.New("must be a note name such as C, Bb or F#")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	display := harmony.DefaultDisplay()
	display.ShowFunctions = true
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Library: LibraryConfig{
			Path:  "./charts",
			Watch: true,
		},
		SQLite: SQLiteConfig{
			Path: "./numeral.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Analysis: AnalysisConfig{
			DefaultKey:  "C",
			Workers:     4,
			BarsPerLine: 4,
			Weights:     harmony.DefaultWeights(),
			Display:     display,
		},
	}
}
