package archive

import (
	"context"
	"testing"
)

func TestNewWithoutBucketIsDisabledNoOp(t *testing.T) {
	p, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Enabled() {
		t.Fatalf("expected publisher with no bucket to be disabled")
	}
	if err := p.Publish(context.Background(), "/tmp/does-not-matter.jsonl"); err != nil {
		t.Fatalf("expected no-op publish to succeed, got %v", err)
	}
}

func TestNewWithBucketIsEnabled(t *testing.T) {
	p, err := New(Config{Bucket: "builds", Endpoint: "127.0.0.1:9000", AccessKey: "a", SecretKey: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Enabled() {
		t.Fatalf("expected publisher with a bucket configured to be enabled")
	}
}
