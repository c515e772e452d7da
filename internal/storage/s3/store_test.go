package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/askmesh/askmesh/internal/storage"
)

func TestPutUsesPrefixAndNormalizedKey(t *testing.T) {
	fake := &fakeAPI{}
	store, err := newWithAPI("bucket-a", "askmesh/prod", fake)
	if err != nil {
		t.Fatalf("newWithAPI() error = %v", err)
	}

	opts := storage.PutOptions{ContentType: "application/vnd.apache.parquet", Metadata: map[string]string{"run-id": "run-1"}}
	_, err = store.Put(context.Background(), "/runs/date=2024-05-01/run-1.parquet", bytes.NewBufferString("abc"), 3, opts)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastBucket != "bucket-a" {
		t.Fatalf("bucket = %q", fake.lastBucket)
	}
	if fake.lastKey != "askmesh/prod/runs/date=2024-05-01/run-1.parquet" {
		t.Fatalf("key = %q", fake.lastKey)
	}
	if fake.lastOpts.Metadata["run-id"] != "run-1" || fake.lastOpts.ContentType != opts.ContentType {
		t.Fatalf("put options = %+v", fake.lastOpts)
	}
}

func TestPutRejectsInvalidKeys(t *testing.T) {
	store, err := newWithAPI("bucket-a", "", &fakeAPI{})
	if err != nil {
		t.Fatalf("newWithAPI() error = %v", err)
	}
	for _, key := range []string{"../secrets.txt", "runs/../../x", "  ", ".."} {
		if _, err := store.Put(context.Background(), key, bytes.NewBufferString("x"), 1, storage.PutOptions{}); err == nil {
			t.Fatalf("Put(%q) expected validation error", key)
		}
	}
}

func TestNewWithAPIValidates(t *testing.T) {
	if _, err := newWithAPI("bucket-a", "", nil); err == nil {
		t.Fatal("expected error for nil api")
	}
	if _, err := newWithAPI(" ", "", &fakeAPI{}); err == nil {
		t.Fatal("expected error for blank bucket")
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeAPI{bucketExists: false}
	store, err := newWithAPI("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("newWithAPI() error = %v", err)
	}

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.madeBucketRegion != "us-east-1" {
		t.Fatalf("MakeBucket region = %q, want us-east-1", fake.madeBucketRegion)
	}
}

func TestPingReportsMissingBucket(t *testing.T) {
	fake := &fakeAPI{bucketExists: false}
	store, err := newWithAPI("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("newWithAPI() error = %v", err)
	}
	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	fake.bucketExists = true
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestGetMapsNotFound(t *testing.T) {
	fake := &fakeAPI{getErr: storage.ErrObjectNotFound}
	store, err := newWithAPI("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("newWithAPI() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "runs/missing.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}

	fake.getErr = errors.New("timeout")
	if _, err := store.Get(context.Background(), "runs/x.parquet"); err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want wrapped transport error", err)
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{raw: "https://minio.example.com", wantHost: "minio.example.com", wantSecure: true},
		{raw: "http://minio:9000", wantHost: "minio:9000"},
		{raw: "http://minio:9000", useSSL: true, wantHost: "minio:9000", wantSecure: true},
		{raw: "localhost:9000", wantHost: "localhost:9000"},
	}
	for _, tc := range tests {
		host, secure, err := splitEndpoint(tc.raw, tc.useSSL)
		if err != nil {
			t.Fatalf("splitEndpoint(%q) error = %v", tc.raw, err)
		}
		if host != tc.wantHost || secure != tc.wantSecure {
			t.Fatalf("splitEndpoint(%q) = %q/%v, want %q/%v", tc.raw, host, secure, tc.wantHost, tc.wantSecure)
		}
	}
	if _, _, err := splitEndpoint("https://", false); err == nil {
		t.Fatal("expected error for URL without host")
	}
}

type fakeAPI struct {
	lastBucket       string
	lastKey          string
	lastOpts         storage.PutOptions
	bucketExists     bool
	madeBucketRegion string
	getErr           error
}

func (f *fakeAPI) PutObject(_ context.Context, bucket, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	f.lastBucket = bucket
	f.lastKey = key
	f.lastOpts = opts
	_, _ = io.Copy(io.Discard, body)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, _, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeAPI) BucketExists(context.Context, string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeAPI) MakeBucket(_ context.Context, _, region string) error {
	f.madeBucketRegion = region
	return nil
}
