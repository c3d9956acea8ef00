//go:build unit

package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObject struct {
	bytes.Buffer
	bucket *memoryBucket
	name   string
	fail   bool
}

func (o *memoryObject) Close() error {
	if o.fail {
		return errors.New("upload rejected")
	}
	o.bucket.objects[o.name] = o.Bytes()
	return nil
}

type memoryBucket struct {
	objects map[string][]byte
	fail    bool
}

func (m *memoryBucket) NewWriter(ctx context.Context, object string) io.WriteCloser {
	return &memoryObject{bucket: m, name: object, fail: m.fail}
}

func TestBucketBackup(t *testing.T) {
	local := filepath.Join(t.TempDir(), "portfolios.json")
	require.NoError(t, os.WriteFile(local, []byte(`{"portfolios": {}}`), 0o644))

	bucket := &memoryBucket{objects: map[string][]byte{}}
	backup := &BucketBackup{
		bucket: bucket,
		prefix: "paper",
		clock:  func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) },
	}

	require.NoError(t, backup.Backup(context.Background(), local))
	assert.Equal(t, `{"portfolios": {}}`, string(bucket.objects["paper/portfolios-20240301T123000Z.json"]))
	assert.Equal(t, `{"portfolios": {}}`, string(bucket.objects["paper/portfolios.json.latest"]))
	assert.NoError(t, backup.Close())
}

func TestBucketBackupErrors(t *testing.T) {
	backup := &BucketBackup{bucket: &memoryBucket{objects: map[string][]byte{}, fail: true}, clock: time.Now}

	assert.Error(t, backup.Backup(context.Background(), filepath.Join(t.TempDir(), "missing.json")))

	local := filepath.Join(t.TempDir(), "portfolios.json")
	require.NoError(t, os.WriteFile(local, []byte(`{}`), 0o644))
	assert.ErrorContains(t, backup.Backup(context.Background(), local), "upload rejected")

	_, err := NewBucketBackup(context.Background(), datamodels.StorageConfig{})
	assert.Error(t, err)
}
