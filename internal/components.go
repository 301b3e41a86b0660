package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/catalog"
	"github.com/erikfacundo/mechiv2-sub000/internal/checklist"
	"github.com/erikfacundo/mechiv2-sub000/internal/docstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/metrics"
	"github.com/erikfacundo/mechiv2-sub000/internal/numbering"
	"github.com/erikfacundo/mechiv2-sub000/internal/objstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/orderservice"
	"github.com/erikfacundo/mechiv2-sub000/internal/photos"
	"github.com/erikfacundo/mechiv2-sub000/internal/sse"
	"github.com/erikfacundo/mechiv2-sub000/pkg/logging"
)

// components holds everything built from a Config.
type components struct {
	cfg     *Config
	logger  *slog.Logger
	db      *docstore.DB
	metrics *metrics.Metrics
	objects objstore.Store
	// files is set when photos are stored on the local filesystem.
	files   *objstore.FS
	photos  *photos.Pipeline
	broker  *sse.Broker
	orders  *orderservice.Service
	catalog *catalog.Catalog
}

func build(opts []Option) (*components, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := logging.Setup(app.logOutput, cfg.App.LogFormat, cfg.App.LogLevel)
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := docstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init docstore: %w", err)
	}

	objects, files, err := openObjectStore(cfg, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	m := metrics.New()
	photoOpts := []photos.Option{
		photos.WithImageOptions(cfg.Images.ImagingOptions()),
		photos.WithLimits(cfg.Images.Limits()),
		photos.WithMetrics(m),
	}
	if cfg.Storage.SignedURLTTL > 0 {
		photoOpts = append(photoOpts, photos.WithSignedURLTTL(cfg.Storage.SignedURLTTL))
	}
	pipeline := photos.New(objects, logger, photoOpts...)

	numbers := numbering.NewGenerator(db.OrderNumbersForYear, logger)
	numbers.OnFallback = m.NumberFallback

	broker := sse.NewBroker(cfg.Events.Throttle)
	orders := orderservice.New(db, checklist.NewEngine(), pipeline, numbers, logger,
		orderservice.WithPublisher(broker))

	return &components{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		metrics: m,
		objects: objects,
		files:   files,
		photos:  pipeline,
		broker:  broker,
		orders:  orders,
		catalog: catalog.New(db, cfg.Catalog.Path, logger),
	}, nil
}

func (c *components) Close() {
	c.broker.Close()
	if err := c.db.Close(); err != nil {
		c.logger.Error("close docstore", slog.String("error", err.Error()))
	}
}

// openObjectStore selects the photo storage backend. Missing R2
// credentials are not fatal: uploads fail with ErrNotConfigured instead.
func openObjectStore(cfg *Config, logger *slog.Logger) (objstore.Store, *objstore.FS, error) {
	switch cfg.Storage.Backend {
	case StorageLocal:
		publicURL := strings.TrimRight(cfg.App.HTTP.PublicURL, "/") + "/files"
		fs, err := objstore.NewFS(cfg.Storage.Local.Path, publicURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("photo storage: local", slog.String("path", fs.Root()))
		return fs, fs, nil

	case StorageNone:
		logger.Warn("photo storage disabled, uploads will fail")
		return objstore.Unconfigured{}, nil, nil
	}

	sources := []objstore.CredentialSource{
		objstore.FromValues(cfg.Storage.R2.Credentials()),
		objstore.FromEnv(os.Getenv),
	}
	if cfg.Storage.CredentialsFile != "" {
		sources = append(sources, objstore.FromJSONFile(cfg.Storage.CredentialsFile))
	}
	if cfg.Storage.UseKeyring {
		ring, err := objstore.OpenKeyring(cfg.Storage.KeyringService, keyringDir(), cfg.Storage.KeyringFilePassword)
		if err != nil {
			logger.Warn("keyring unavailable", slog.String("error", err.Error()))
		} else {
			sources = append(sources, objstore.FromKeyring(ring))
		}
	}

	creds, source, err := objstore.LoadCredentials(sources...)
	if err != nil {
		if errors.Is(err, apperr.ErrNotConfigured) {
			logger.Warn("R2 credentials not found, uploads will fail", slog.String("error", err.Error()))
			return objstore.Unconfigured{}, nil, nil
		}
		return nil, nil, err
	}
	r2, err := objstore.NewR2(creds)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("photo storage: r2",
		slog.String("bucket", creds.Bucket),
		slog.String("credentials", source))
	return r2, nil, nil
}

func keyringDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".mechi-keyring")
	}
	return filepath.Join(dir, "mechi", "keyring")
}

// ensureDir creates dir when it does not exist.
func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
