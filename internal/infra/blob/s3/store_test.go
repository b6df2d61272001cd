package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"mchroma/internal/blob/core"
)

// fakeS3 serves the object subset the store uses. Listing returns one key per
// page to exercise continuation.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	deletes int
}

type fakeObject struct {
	body        []byte
	contentType string
	meta        map[string]string
}

func respond(status int, body string, hdr http.Header) *http.Response {
	if hdr == nil {
		hdr = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: hdr}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) { //nolint:cyclop
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req), nil
	}
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, "", nil), nil
		}
		hdr := http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Etag":           {"\"etag-" + key + "\""},
			"Last-Modified":  {time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat)},
		}
		for k, v := range obj.meta {
			hdr.Set("X-Amz-Meta-"+k, v)
		}
		if req.Method == http.MethodHead {
			return respond(http.StatusOK, "", hdr), nil
		}
		return respond(http.StatusOK, string(obj.body), hdr), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		meta := map[string]string{}
		for h, v := range req.Header {
			if strings.HasPrefix(strings.ToLower(h), "x-amz-meta-") {
				meta[strings.ToLower(strings.TrimPrefix(strings.ToLower(h), "x-amz-meta-"))] = v[0]
			}
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), meta: meta}
		return respond(http.StatusOK, "", http.Header{"Etag": {"\"etag\""}}), nil
	case http.MethodDelete:
		f.deletes++
		delete(f.objects, key)
		return respond(http.StatusNoContent, "", nil), nil
	}
	return respond(http.StatusNotImplemented, "", nil), nil
}

func (f *fakeS3) list(req *http.Request) *http.Response {
	prefix := req.URL.Query().Get("prefix")
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if tok := req.URL.Query().Get("continuation-token"); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	if start < len(keys) {
		k := keys[start]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k].body))
	}
	if start+1 < len(keys) {
		fmt.Fprintf(&b, "<IsTruncated>true</IsTruncated><NextContinuationToken>%d</NextContinuationToken>", start+1)
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}})
}

// decodeChunked unwraps a single-chunk aws-chunked payload.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil || n <= 0 || int64(len(parts[1])) != n || parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string]fakeObject)}
	store, err := New(context.Background(), Config{
		Bucket:          "traces",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: fake},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, fake
}

func TestStore_PutGetHeadDelete(t *testing.T) {
	store, fake := newFakeStore(t)
	ctx := context.Background()
	info, err := store.Put(ctx, "exports/run.csv", bytes.NewReader([]byte("rt,area\n")), core.PutOptions{ContentType: core.ContentTypeCSV, Metadata: map[string]string{"traces": "a"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/run.csv" || info.ContentType != core.ContentTypeCSV || info.Size != 8 || info.ETag != "etag-exports/run.csv" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "exports/run.csv", bytes.NewReader([]byte("again")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, rc, err := store.Get(ctx, "exports/run.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "rt,area\n" || got.Metadata["traces"] != "a" {
		t.Fatalf("get: %q %+v", data, got)
	}
	if ok, err := store.Delete(ctx, "exports/run.csv"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "exports/run.csv"); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if fake.deletes != 1 {
		t.Fatalf("expected a single DeleteObject call, got %d", fake.deletes)
	}
}

func TestStore_MissingObjects(t *testing.T) {
	store, _ := newFakeStore(t)
	ctx := context.Background()
	if _, err := store.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: %v", err)
	}
	if _, _, err := store.Get(ctx, "nope"); err == nil {
		t.Fatalf("expected get error for missing key")
	}
	if _, err := store.Put(ctx, " ", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestStore_ListPaginates(t *testing.T) {
	store, _ := newFakeStore(t)
	ctx := context.Background()
	for _, k := range []string{"raw/b.txt", "raw/a.txt", "exports/x.csv"} {
		if _, err := store.Put(ctx, k, bytes.NewReader([]byte("1\n")), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := store.List(ctx, "raw/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "raw/a.txt" || list[1].Key != "raw/b.txt" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list, err := store.List(ctx, "none/"); err != nil || len(list) != 0 {
		t.Fatalf("expected empty list: %v %+v", err, list)
	}
}

func TestStore_Presign(t *testing.T) {
	store, _ := newFakeStore(t)
	ctx := context.Background()
	url, err := store.PresignURL(ctx, "exports/run.csv", core.SignedURLOptions{Expiry: 30 * time.Second})
	if err != nil || !strings.Contains(url, "X-Amz-Expires=30") {
		t.Fatalf("presign: %v %s", err, url)
	}
	if url, err := store.PresignURL(ctx, "exports/run.csv", core.SignedURLOptions{}); err != nil || !strings.Contains(url, "X-Amz-Expires=900") {
		t.Fatalf("presign default expiry: %v %s", err, url)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
	store, _ := newFakeStore(t)
	if store.Driver() != core.DriverS3 {
		t.Fatalf("expected DriverS3")
	}
}

func TestDecodeChunked(t *testing.T) {
	if _, ok := decodeChunked([]byte("plain")); ok {
		t.Fatalf("plain body decoded")
	}
	if _, ok := decodeChunked([]byte("5\r\nabc\r\n0\r\n")); ok {
		t.Fatalf("size mismatch decoded")
	}
	if b, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\n")); !ok || string(b) != "hello" {
		t.Fatalf("expected hello, got %q", b)
	}
}
