// Package config reads the converter's settings from the environment.
package config

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/voxelsplace/model2glb/api"
	"github.com/voxelsplace/model2glb/model"
	"github.com/voxelsplace/model2glb/storage"
)

// Storage backends.
const (
	StorageOS    = "os"
	StorageMinio = "minio"
)

// Config holds all configuration values from environment.
type Config struct {
	// Engine is the path of the wasm engine module, plain or zstd compressed.
	// Empty means the module built into the binary.
	Engine       string
	NoticeLevel  int
	ExtraFormats []string

	Storage string
	Minio   storage.MinioConfig
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom loads configuration through getenv.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Engine:      getenv("MODEL2GLB_ENGINE"),
		NoticeLevel: model.DefaultNoticeLevel,
		Storage:     StorageOS,
		Minio: storage.MinioConfig{
			Endpoint:  getenv("MINIO_ENDPOINT"),
			AccessKey: getenv("MINIO_ACCESS_KEY"),
			SecretKey: getenv("MINIO_SECRET_KEY"),
			Bucket:    getenv("MINIO_BUCKET"),
		},
	}

	if v := getenv("MODEL2GLB_NOTICE_LEVEL"); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid MODEL2GLB_NOTICE_LEVEL value")
		}
		cfg.NoticeLevel = level
	}
	if err := (model.Options{NoticeLevel: cfg.NoticeLevel}).Validate("config.Load"); err != nil {
		return nil, errors.Wrap(err, "invalid MODEL2GLB_NOTICE_LEVEL value")
	}

	for _, ext := range strings.Split(getenv("MODEL2GLB_EXTRA_FORMATS"), ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			cfg.ExtraFormats = append(cfg.ExtraFormats, ext)
		}
	}

	if v := getenv("MINIO_SSL"); v != "" {
		ssl, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid MINIO_SSL value")
		}
		cfg.Minio.SSL = ssl
	}

	if v := strings.ToLower(getenv("MODEL2GLB_STORAGE")); v != "" {
		cfg.Storage = v
	}
	switch cfg.Storage {
	case StorageOS:
	case StorageMinio:
		m := cfg.Minio
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return nil, errors.New("minio configuration is incomplete")
		}
	default:
		return nil, errors.Errorf("unknown MODEL2GLB_STORAGE %q (want %s or %s)", cfg.Storage, StorageOS, StorageMinio)
	}
	return cfg, nil
}

// Resolver fills absent options from the configured notice level.
func (c *Config) Resolver() (*model.Resolver, error) {
	return model.NewResolver(model.Options{NoticeLevel: c.NoticeLevel})
}

// Formats returns the default input formats plus the extra ones.
func (c *Config) Formats() *model.FormatTable {
	t := model.DefaultFormats()
	for _, ext := range c.ExtraFormats {
		t.Register(ext, strings.ToUpper(strings.TrimPrefix(ext, ".")))
	}
	return t
}

// OpenStorage connects the configured backend. A non-empty root confines the
// filesystem backend to that directory.
func (c *Config) OpenStorage(ctx context.Context, root string) (api.Storage, error) {
	switch c.Storage {
	case StorageMinio:
		if root != "" {
			return nil, errors.New("a root directory cannot be used with minio storage")
		}
		return storage.NewMinio(ctx, c.Minio)
	default:
		if root != "" {
			return storage.NewRooted(root), nil
		}
		return storage.NewOS(), nil
	}
}
