package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/erikfacundo/mechiv2-sub000/internal/imaging"
	"github.com/erikfacundo/mechiv2-sub000/internal/objstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/photos"
	"github.com/erikfacundo/mechiv2-sub000/pkg/logging"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage backends.
const (
	StorageR2    = "r2"
	StorageLocal = "local"
	StorageNone  = "none"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Storage StorageConfig     `yaml:"storage"`
	Images  ImagesConfig      `yaml:"images"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Events  EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.SQLite, &c.Auth, &c.Storage, &c.Images, &c.Catalog, &c.Events} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(logging.FormatJSON, logging.FormatText)),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// PublicURL is the externally reachable base URL, used for locally
	// stored files.
	PublicURL string `yaml:"public_url"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.PublicURL, is.URL),
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

// StorageConfig selects where photos are uploaded.
//
// With backend "r2" credentials are taken from the first source that has a
// complete set: the r2 section, the R2_* environment variables, the
// credentials file, then the OS keyring when enabled. If none does, uploads
// fail with a "storage not configured" error.
type StorageConfig struct {
	Backend             string        `yaml:"backend"`
	R2                  R2Config      `yaml:"r2"`
	Local               LocalConfig   `yaml:"local"`
	CredentialsFile     string        `yaml:"credentials_file"`
	UseKeyring          bool          `yaml:"use_keyring"`
	KeyringService      string        `yaml:"keyring_service"`
	// KeyringFilePassword encrypts the file keyring used when no system
	// keyring is available. Without it the file backend is disabled.
	KeyringFilePassword string        `yaml:"keyring_file_password"`
	SignedURLTTL        time.Duration `yaml:"signed_url_ttl"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = StorageR2
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(StorageR2, StorageLocal, StorageNone)),
		validation.Field(&c.SignedURLTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.KeyringService, validation.When(c.UseKeyring, validation.Required)),
	); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if c.Backend == StorageLocal {
		return c.Local.Validate()
	}
	return nil
}

// R2Config holds inline R2 credentials. Values usually come from ${ENV}
// expansion.
type R2Config struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	PublicURL       string `yaml:"public_url"`
}

// Credentials converts the section to objstore credentials.
func (c R2Config) Credentials() objstore.Credentials {
	return objstore.Credentials{
		AccountID:       c.AccountID,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Bucket:          c.Bucket,
		PublicURL:       c.PublicURL,
	}
}

// LocalConfig stores photos in a directory served under /files.
type LocalConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the local storage configuration.
func (c *LocalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ImagesConfig controls photo processing and inline storage ceilings.
type ImagesConfig struct {
	MaxWidth          int           `yaml:"max_width"`
	MaxHeight         int           `yaml:"max_height"`
	Quality           float64       `yaml:"quality"`
	DecodeTimeout     time.Duration `yaml:"decode_timeout"`
	InlineMaxBytes    int           `yaml:"inline_max_bytes"`
	InlineBudgetBytes int           `yaml:"inline_budget_bytes"`
	DocumentMaxBytes  int           `yaml:"document_max_bytes"`
}

// Validate validates the images configuration.
func (c *ImagesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxWidth, validation.Required, validation.Min(1), validation.Max(imaging.MaxCanvasDim)),
		validation.Field(&c.MaxHeight, validation.Required, validation.Min(1), validation.Max(imaging.MaxCanvasDim)),
		validation.Field(&c.Quality, validation.Required, validation.Min(0.0).Exclusive(), validation.Max(1.0)),
		validation.Field(&c.DecodeTimeout, validation.Required),
		validation.Field(&c.InlineMaxBytes, validation.Required, validation.Min(1)),
		validation.Field(&c.InlineBudgetBytes, validation.Required, validation.Min(c.InlineMaxBytes)),
		validation.Field(&c.DocumentMaxBytes, validation.Required, validation.Min(c.InlineBudgetBytes)),
	); err != nil {
		return fmt.Errorf("images: %w", err)
	}
	return nil
}

// ImagingOptions converts the section to processing options.
func (c *ImagesConfig) ImagingOptions() imaging.Options {
	return imaging.Options{
		MaxWidth:  c.MaxWidth,
		MaxHeight: c.MaxHeight,
		Quality:   c.Quality,
		Timeout:   c.DecodeTimeout,
	}
}

// Limits converts the section to inline storage limits.
func (c *ImagesConfig) Limits() photos.Limits {
	return photos.Limits{
		InlineMaxBytes:    c.InlineMaxBytes,
		InlineBudgetBytes: c.InlineBudgetBytes,
		DocumentMaxBytes:  c.DocumentMaxBytes,
	}
}

// CatalogConfig points at the Markdown category catalogue. An empty path
// disables it.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Watch, validation.When(c.Path == "", validation.Empty.Error("requires a catalog path"))),
	)
}

// EventsConfig tunes the SSE broker.
type EventsConfig struct {
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: logging.FormatJSON,
			HTTP: HTTPConfig{
				Port:      8080,
				PublicURL: "http://localhost:8080",
			},
		},
		SQLite: SQLiteConfig{
			Path: "./mechi.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Storage: StorageConfig{
			Backend:        StorageR2,
			Local:          LocalConfig{Path: "./uploads"},
			KeyringService: "mechi",
			SignedURLTTL:   15 * time.Minute,
		},
		Images: ImagesConfig{
			MaxWidth:          imaging.DefaultMaxWidth,
			MaxHeight:         imaging.DefaultMaxHeight,
			Quality:           imaging.DefaultQuality,
			DecodeTimeout:     imaging.DefaultTimeout,
			InlineMaxBytes:    photos.DefaultInlineMaxBytes,
			InlineBudgetBytes: photos.DefaultInlineBudgetBytes,
			DocumentMaxBytes:  photos.DefaultDocumentMaxBytes,
		},
		Catalog: CatalogConfig{
			Path:  "./categories",
			Watch: true,
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
	}
}
