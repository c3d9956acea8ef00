package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"

	"cloud.google.com/go/storage"
)

type objectWriter interface {
	NewWriter(ctx context.Context, object string) io.WriteCloser
}

type gcsBucket struct {
	handle *storage.BucketHandle
}

func (b gcsBucket) NewWriter(ctx context.Context, object string) io.WriteCloser {
	return b.handle.Object(object).NewWriter(ctx)
}

// BucketBackup copies the portfolio file to a bucket after every scan. Each
// copy is kept under a timestamped name, and "<name>.latest" is overwritten.
type BucketBackup struct {
	client *storage.Client
	bucket objectWriter
	prefix string
	clock  func() time.Time
}

// NewBucketBackup connects with application default credentials, or to
// STORAGE_EMULATOR_HOST when set.
func NewBucketBackup(ctx context.Context, config datamodels.StorageConfig) (*BucketBackup, error) {
	if !config.Enabled() {
		return nil, errors.New("backup.bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create storage client")
	}
	slog.Info("Backing up portfolios to bucket", "bucket", config.Bucket, "prefix", config.Prefix)
	return &BucketBackup{
		client: client,
		bucket: gcsBucket{handle: client.Bucket(config.Bucket)},
		prefix: config.Prefix,
		clock:  time.Now,
	}, nil
}

func (b *BucketBackup) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func (b *BucketBackup) objectNames(localPath string) (string, string) {
	name := filepath.Base(localPath)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamp := b.clock().UTC().Format("20060102T150405Z")
	return path.Join(b.prefix, fmt.Sprintf("%s-%s%s", stem, stamp, ext)),
		path.Join(b.prefix, name+".latest")
}

func (b *BucketBackup) Backup(ctx context.Context, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrapf(err, "cannot read %s for backup", localPath)
	}
	stamped, latest := b.objectNames(localPath)
	for _, object := range []string{stamped, latest} {
		if err := b.upload(ctx, object, data); err != nil {
			return err
		}
	}
	slog.Debug("Portfolio backup written", "object", stamped, "bytes", len(data))
	return nil
}

func (b *BucketBackup) upload(ctx context.Context, object string, data []byte) error {
	writer := b.bucket.NewWriter(ctx, object)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return errors.Wrapf(err, "cannot upload %s", object)
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err, "cannot finish upload of %s", object)
	}
	return nil
}
