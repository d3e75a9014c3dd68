//go:build integration

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func s3ConfigFromEnv(t *testing.T) S3Config {
	t.Helper()

	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_S3_ENDPOINT not set, skipping S3 integration test")
	}

	return S3Config{
		Bucket:    os.Getenv("TEST_S3_BUCKET"),
		Endpoint:  endpoint,
		Region:    os.Getenv("TEST_S3_REGION"),
		AccessKey: os.Getenv("TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("TEST_S3_SECRET_KEY"),
		UseSSL:    os.Getenv("TEST_S3_USE_SSL") == "true",
	}
}

func TestS3Storage_Integration_WriteReadList(t *testing.T) {
	store, err := NewS3Storage(s3ConfigFromEnv(t))
	if err != nil {
		t.Fatalf("NewS3Storage() error: %v", err)
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("csvexport-test-%d/", time.Now().UnixNano())
	key := prefix + "users_20240101_000000.csv"
	content := "id,name\n1,Alice\n2,\"Bob,Jr\"\n"

	if err := store.Write(ctx, key, strings.NewReader(content)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	exists, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if !exists {
		t.Error("Exists() = false after Write")
	}

	reader, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if string(data) != content {
		t.Errorf("Read() = %q, want %q", data, content)
	}

	files, err := store.List(ctx, prefix)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(files) != 1 || files[0].Path != key {
		t.Errorf("List() = %+v, want [%s]", files, key)
	}
}
