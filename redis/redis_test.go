package redis

import (
	"context"
	"testing"
	"time"
)

func TestSnapshotKeyIsPerNode(t *testing.T) {
	if snapshotKey(1) == snapshotKey(2) {
		t.Fatal("expected distinct keys for distinct node ids")
	}
}

// Against an address nothing listens on, Publish/Fetch must surface an
// error rather than hang or panic; the redis client's own dial timeout
// bounds how long this takes.
func TestPublishFetchSurfaceConnectionError(t *testing.T) {
	m := NewMirror("127.0.0.1:1", 1)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := m.Publish(ctx, map[string]int{"clock": 1}); err == nil {
		t.Fatal("expected Publish against an unreachable redis to error")
	}
	if _, err := m.Fetch(ctx, 1); err == nil {
		t.Fatal("expected Fetch against an unreachable redis to error")
	}
}
