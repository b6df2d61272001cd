package blob

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"mchroma/internal/config"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "blobs")
	cases := []struct {
		settings config.BlobSettings
		want     Driver
	}{
		{config.BlobSettings{FSRoot: root}, DriverFilesystem},
		{config.BlobSettings{Driver: "fs", FSRoot: root}, DriverFilesystem},
		{config.BlobSettings{Driver: "memory"}, DriverMemory},
		{config.BlobSettings{Driver: "s3", S3Bucket: "traces", S3Endpoint: "http://127.0.0.1:9", S3PathStyle: true}, DriverS3},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.settings)
		if err != nil {
			t.Fatalf("open %+v: %v", tc.settings, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("driver = %s, want %s", store.Driver(), tc.want)
		}
	}
	if _, err := Open(ctx, config.BlobSettings{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, config.BlobSettings{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestStoreSentinelsAcrossBackends(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{NewMemory(), fsStore} {
		if _, err := store.Put(ctx, "a.csv", bytes.NewReader([]byte("x")), PutOptions{ContentType: ContentTypeCSV}); err != nil {
			t.Fatalf("%s put: %v", store.Driver(), err)
		}
		if _, err := store.Put(ctx, "a.csv", bytes.NewReader([]byte("y")), PutOptions{}); !errors.Is(err, ErrExists) {
			t.Fatalf("%s duplicate: %v", store.Driver(), err)
		}
		if _, err := store.Head(ctx, "b.csv"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s missing: %v", store.Driver(), err)
		}
	}
}
