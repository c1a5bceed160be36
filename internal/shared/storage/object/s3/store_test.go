package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "2024/06/30/run.json", want: "2024/06/30/run.json"},
		{name: "simple prefix", prefix: "reports", key: "2024/06/30/run.json", want: "reports/2024/06/30/run.json"},
		{name: "prefix trailing slash", prefix: "lambda-janitor/", key: "run.json", want: "lambda-janitor/run.json"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/run.json", want: "root/run.json"},
		{name: "nested prefix", prefix: "ops/janitor", key: "run.json", want: "ops/janitor/run.json"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeS3 struct {
	put     *s3.PutObjectInput
	body    []byte
	objects map[string]string
	err     error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	_ = ctx
	_ = optFns
	if f.err != nil {
		return nil, f.err
	}
	f.put = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	_ = ctx
	_ = optFns
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(data))}, nil
}

func TestPutUploadsWithPrefixAndEncryption(t *testing.T) {
	client := &fakeS3{}
	store, err := New(client, "ops-bucket", "lambda-janitor/", "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	n, err := store.Put(context.Background(), "2024/06/30/run-1.json", "application/json", bytes.NewReader([]byte(`{"ok":true}`)))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != 11 {
		t.Fatalf("size = %d", n)
	}
	if aws.ToString(client.put.Key) != "lambda-janitor/2024/06/30/run-1.json" {
		t.Fatalf("key = %q", aws.ToString(client.put.Key))
	}
	if aws.ToString(client.put.Bucket) != "ops-bucket" || aws.ToString(client.put.ContentType) != "application/json" {
		t.Fatalf("unexpected input: %+v", client.put)
	}
	if client.put.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("sse = %q", client.put.ServerSideEncryption)
	}
	if string(client.body) != `{"ok":true}` {
		t.Fatalf("body = %q", client.body)
	}
}

func TestPutUsesKMSKey(t *testing.T) {
	client := &fakeS3{}
	store, err := New(client, "ops-bucket", "", "kms-key")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Put(context.Background(), "run.json", "application/json", strings.NewReader("{}")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if client.put.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(client.put.SSEKMSKeyId) != "kms-key" {
		t.Fatalf("unexpected encryption: %+v", client.put)
	}
}

func TestPutRejectsTraversalAndErrors(t *testing.T) {
	store, _ := New(&fakeS3{}, "ops-bucket", "", "")
	if _, err := store.Put(context.Background(), "../secret", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatalf("expected traversal error")
	}

	failing, _ := New(&fakeS3{err: errors.New("access denied")}, "ops-bucket", "", "")
	if _, err := failing.Put(context.Background(), "run.json", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatalf("expected put error")
	}
}

func TestOpenReadsObject(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"reports/run.json": "{}"}}
	store, _ := New(client, "ops-bucket", "reports", "")

	rc, err := store.Open(context.Background(), "run.json")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "{}" {
		t.Fatalf("data = %q", data)
	}

	if _, err := store.Open(context.Background(), "missing.json"); err == nil {
		t.Fatalf("expected missing object error")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(&fakeS3{}, " ", "", ""); err == nil {
		t.Fatalf("expected bucket error")
	}
}
