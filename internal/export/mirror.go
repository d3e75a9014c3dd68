package export

import (
	"github.com/localrivet/csvexport/internal/config"
	"github.com/localrivet/csvexport/internal/storage"
)

// NewMirror builds the backend artifacts are copied to. It returns nil when
// mirroring is disabled.
func NewMirror(cfg *config.Config) (storage.Backend, error) {
	if !cfg.MirrorEnabled() {
		return nil, nil
	}

	return storage.NewFactory().Create(cfg.Storage.Backend, cfg.Storage.Path, &storage.S3Config{
		Bucket:    cfg.Storage.S3.Bucket,
		Endpoint:  cfg.Storage.S3.Endpoint,
		Region:    cfg.Storage.S3.Region,
		AccessKey: cfg.Storage.S3.AccessKey,
		SecretKey: cfg.Storage.S3.SecretKey,
		UseSSL:    cfg.Storage.S3.UseSSL,
	})
}
