package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bucketRoundTripper is an in-memory PUT-only bucket.
type bucketRoundTripper struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	status  int
}

func newBucket() *bucketRoundTripper {
	return &bucketRoundTripper{objects: map[string][]byte{}, types: map[string]string{}, status: http.StatusOK}
}

func (b *bucketRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status != http.StatusOK {
		body := `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`
		return &http.Response{
			StatusCode: b.status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Content-Type": {"application/xml"}},
			Request:    req,
		}, nil
	}
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: http.NoBody, Header: http.Header{}, Request: req}, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	key := strings.TrimPrefix(req.URL.Path, "/")
	b.objects[key] = data
	b.types[key] = req.Header.Get("Content-Type")
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{"Etag": {`"etag123"`}},
		Request:    req,
	}, nil
}

func newTestUploader(t *testing.T, rt *bucketRoundTripper) *Uploader {
	t.Helper()
	u, err := New(context.Background(), Config{
		Bucket:          "reports",
		Endpoint:        "http://mock.s3.local",
		Prefix:          "topoload/runs",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	return u
}

func TestUpload(t *testing.T) {
	rt := newBucket()
	u := newTestUploader(t, rt)

	report := map[string]any{"run_id": "run-1", "totals": map[string]int{"total": 3, "good": 2}}
	key, err := u.Upload(context.Background(), "run-1", report)
	require.NoError(t, err)
	assert.Equal(t, "topoload/runs/run-1.json", key)

	body, ok := rt.objects["reports/topoload/runs/run-1.json"]
	require.True(t, ok, "path-style key includes the bucket")
	assert.Equal(t, "application/json", rt.types["reports/topoload/runs/run-1.json"])

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "run-1", got["run_id"])
}

func TestUpload_Rejected(t *testing.T) {
	rt := newBucket()
	rt.status = http.StatusForbidden
	u := newTestUploader(t, rt)

	_, err := u.Upload(context.Background(), "run-2", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topoload/runs/run-2.json")
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.Error(t, err)
}

func TestKey_NoPrefix(t *testing.T) {
	u := &Uploader{}
	assert.Equal(t, "run-3.json", u.Key("run-3"))
}
