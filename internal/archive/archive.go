// Package archive ships a completed build artifact off-box to an
// S3-compatible bucket as a best-effort backup (C24). It is never on the
// critical path: a failed upload is logged and never fails the build.
package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ronaldeddings/unified-agent/internal/logging"
	"github.com/ronaldeddings/unified-agent/internal/util"
)

// uploadAttempts bounds how many times a single archive upload is retried
// before Publish gives up and logs the failure.
const uploadAttempts = 3

// Publisher uploads completed build artifacts to a configured bucket.
// A nil *Publisher (or one built with no bucket configured) is a safe no-op.
type Publisher struct {
	client *minio.Client
	bucket string
}

// Config carries the subset of internal/config.Config that Publisher needs,
// kept decoupled from the config package to avoid an import cycle.
type Config struct {
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// New builds a Publisher. If cfg.Bucket is empty, archiving is disabled and
// every Publish call becomes a no-op — callers don't need to branch on
// whether archiving is configured.
func New(cfg Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return &Publisher{}, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: new client: %w", err)
	}
	return &Publisher{client: client, bucket: cfg.Bucket}, nil
}

// Enabled reports whether this Publisher will actually upload anything.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil && p.bucket != ""
}

// Publish uploads the build output at localPath to
// distilled/<filename> in the configured bucket. Failure is logged, never
// returned as a build-breaking error — callers should not check the return
// value for control flow beyond logging/metrics.
func (p *Publisher) Publish(ctx context.Context, localPath string) error {
	if !p.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	objectName := filepath.Join("distilled", filepath.Base(localPath))
	_, err := util.WithRetry(ctx, uploadAttempts, "archive upload", func(ctx context.Context) (minio.UploadInfo, error) {
		return p.client.FPutObject(ctx, p.bucket, objectName, localPath, minio.PutObjectOptions{
			ContentType: "application/x-ndjson",
		})
	})
	if err != nil {
		logging.WithError(err).Warnf("archive: upload of %s to %s/%s failed, continuing without archive", localPath, p.bucket, objectName)
		return fmt.Errorf("archive: upload %s: %w", localPath, err)
	}
	logging.Infof("archive: uploaded %s to %s/%s", localPath, p.bucket, objectName)
	return nil
}
