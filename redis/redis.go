// Package redis mirrors node snapshots into Redis so an operator
// dashboard can poll a node's state without hitting its HTTP surface
// directly, and so state survives a dashboard restart.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudflare/cfssl/log"
	"github.com/go-redis/redis/v8"

	"github.com/fastestssbc/meta"
	"github.com/fastestssbc/util"
)

// Mirror publishes a node's Inspect snapshot to Redis on a timer.
type Mirror struct {
	rdb  *redis.Client
	self meta.NodeId
}

// NewMirror connects to a Redis instance at addr ("host:port").
func NewMirror(addr string, self meta.NodeId) *Mirror {
	return &Mirror{
		rdb:  redis.NewClient(&redis.Options{Addr: addr}),
		self: self,
	}
}

func snapshotKey(id meta.NodeId) string {
	return fmt.Sprintf("fastestssbc:node:%d:snapshot", id)
}

// Publish serializes snapshot and stores it under this node's key with
// a short expiry, so a crashed node's last-known state eventually
// disappears from the dashboard rather than looking falsely current.
func (m *Mirror) Publish(ctx context.Context, snapshot interface{}) error {
	body, err := util.FastestJson.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := m.rdb.Set(ctx, snapshotKey(m.self), body, 30*time.Second).Err(); err != nil {
		log.Errorf("redis mirror: publish failed for node %d: %v", m.self, err)
		return err
	}
	return nil
}

// Fetch reads a peer's last-published snapshot as raw JSON, or ("",
// nil) if it has expired or was never published.
func (m *Mirror) Fetch(ctx context.Context, id meta.NodeId) (string, error) {
	val, err := m.rdb.Get(ctx, snapshotKey(id)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Run publishes snapshot() on a ticker until ctx is done.
func (m *Mirror) Run(ctx context.Context, interval time.Duration, snapshot func() interface{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Publish(ctx, snapshot())
		}
	}
}
