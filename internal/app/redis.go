package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tturner/cipadapter/internal/logging"
)

// connectionsSnapshot is the JSON document written to key on each periodic
// snapshot: the active connections as a plain list, plus a timestamp.
type connectionsSnapshot struct {
	Connections []ConnectionSummary `json:"connections"`
	Timestamp   string              `json:"timestamp"`
}

// redisBridge writes a periodic snapshot of active connections to a single
// key (grounded on the teacher pack's warlogix valkey.Publisher, trimmed
// from its tag-level read/write-request protocol to a plain snapshot write:
// this adapter has no write-back path for connections to accept).
type redisBridge struct {
	client *redis.Client
	key    string
	logger *logging.Logger
}

func newRedisBridge(addr, key string, logger *logging.Logger) *redisBridge {
	return &redisBridge{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
		logger: logger,
	}
}

func (b *redisBridge) snapshot(conns []ConnectionSummary) error {
	doc := connectionsSnapshot{Connections: conns, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("app: marshal connections snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.client.Set(ctx, b.key, payload, 0).Err(); err != nil {
		b.logger.Error("redis: write snapshot to %s: %v", b.key, err)
		return err
	}
	return nil
}

func (b *redisBridge) close() {
	_ = b.client.Close()
}
