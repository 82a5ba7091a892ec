package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/minio"
)

func TestContentType(t *testing.T) {
	ct, err := ContentType("out/impedance_100mV_1000Ohm_Inc.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/tab-separated-values", ct)

	ct, err = ContentType("a.PARQUET")
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.apache.parquet", ct)

	_, err = ContentType("a.wav")
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "sweeps/abc/impedance_100mV_1000Ohm_Dec.png", ObjectKey("abc", "/tmp/run/impedance_100mV_1000Ohm_Dec.png"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Bucket: "b", Backend: "ftp"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Bucket: "b", Backend: BackendMinio})
	assert.Error(t, err)
}

func TestResultStores_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := minio.Run(ctx,
		"minio/minio:RELEASE.2024-10-29T16-01-48Z",
		minio.WithUsername("minioadmin"),
		minio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer func() { require.NoError(t, container.Terminate(ctx)) }()

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := Config{
		Bucket:    "zsweep-test-" + uuid.New().String()[:8],
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	}

	path := filepath.Join(t.TempDir(), "impedance_100mV_1000Ohm_Inc.txt")
	require.NoError(t, os.WriteFile(path, []byte("1000\t50\t0\n"), 0o644))

	// The minio backend creates the bucket the S3 backend then reuses.
	for _, backend := range []string{BackendMinio, BackendS3} {
		t.Run(backend, func(t *testing.T) {
			cfg.Backend = backend
			store, err := New(ctx, cfg)
			require.NoError(t, err)

			key := ObjectKey(uuid.NewString(), path)
			require.NoError(t, store.UploadFile(ctx, key, path))

			data, err := store.DownloadFile(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "1000\t50\t0\n", string(data))

			url, err := store.GenerateDownloadURL(ctx, key)
			require.NoError(t, err)
			assert.Contains(t, url, key)

			require.NoError(t, store.DeleteFile(ctx, key))
			_, err = store.DownloadFile(ctx, key)
			assert.Error(t, err)
		})
	}
}
