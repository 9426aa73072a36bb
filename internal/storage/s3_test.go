package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 is a tiny conditional-write S3 subset served over a RoundTripper.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	next    int
	denyPut map[string]bool
}

type fakeObject struct {
	body []byte
	etag string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]fakeObject{}, denyPut: map[string]bool{}}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch req.Method {
	case http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return xmlError(http.StatusNotFound, "NoSuchKey"), nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(obj.body)), Header: http.Header{
			"Content-Length": {fmt.Sprintf("%d", len(obj.body))},
			"Content-Type":   {"application/json"},
			"Etag":           {obj.etag},
		}}, nil
	case http.MethodPut:
		if f.denyPut[key] {
			return xmlError(http.StatusForbidden, "AccessDenied"), nil
		}
		obj, exists := f.objects[key]
		if req.Header.Get("If-None-Match") == "*" && exists {
			return xmlError(http.StatusPreconditionFailed, "PreconditionFailed"), nil
		}
		if match := req.Header.Get("If-Match"); match != "" && (!exists || obj.etag != match) {
			return xmlError(http.StatusPreconditionFailed, "PreconditionFailed"), nil
		}
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.next++
		etag := fmt.Sprintf("\"etag-%d\"", f.next)
		f.objects[key] = fakeObject{body: body, etag: etag}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"Etag": {etag}}}, nil
	case http.MethodDelete:
		delete(f.objects, key)
		return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	return xmlError(http.StatusNotImplemented, "NotImplemented"), nil
}

func xmlError(status int, code string) *http.Response {
	body := "<?xml version=\"1.0\"?><Error><Code>" + code + "</Code><Message>" + code + "</Message></Error>"
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{"Content-Type": {"application/xml"}}}
}

// decodeChunked unwraps a single-chunk aws-chunked payload: <hex>\r\n<body>\r\n0\r\n...
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 || parts[2] != "0" {
		return nil, false
	}
	var size int
	if _, err := fmt.Sscanf(strings.SplitN(parts[0], ";", 2)[0], "%x", &size); err != nil || size != len(parts[1]) {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newTestS3Store(t *testing.T, fake *fakeS3) *S3Store {
	t.Helper()
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	client := awsS3.NewFromConfig(cfg, func(o *awsS3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return NewS3StoreFromClient(client, "mock-bucket", "medtracker/")
}

func TestS3Store(t *testing.T) {
	fake := newFakeS3()
	exerciseKV(t, newTestS3Store(t, fake))

	if _, ok := fake.objects["medtracker/drugs.json"]; !ok {
		t.Fatalf("expected prefixed object key, have %v", fake.objects)
	}
}

func TestS3StoreRollsBackPartialCommit(t *testing.T) {
	fake := newFakeS3()
	store := newTestS3Store(t, fake)
	ctx := context.Background()

	if err := store.Commit(ctx, Write{Key: "drugs", Value: []byte(`["before"]`)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	seeded, _ := store.Get(ctx, "drugs")

	fake.denyPut["medtracker/a_overrides.json"] = true
	err := store.Commit(ctx,
		Write{Key: "drugs", Value: []byte(`["after"]`), Expect: seeded.Revision},
		Write{Key: "a_overrides", Value: []byte(`[]`)},
	)
	if err == nil {
		t.Fatal("expected commit to fail")
	}

	item, err := store.Get(ctx, "drugs")
	if err != nil {
		t.Fatal(err)
	}
	if string(item.Value) != `["before"]` {
		t.Fatalf("expected drugs restored, got %s", item.Value)
	}
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
