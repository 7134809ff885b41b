// Package relay forwards journaled registry events to an external broker,
// resuming from a durable cursor so every event is delivered at least once
// and in seq order.
package relay

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/didregistry/internal/platform/timeouts"
	"github.com/louisbranch/didregistry/internal/services/registry/event"
	"github.com/louisbranch/didregistry/internal/services/registry/storage"
)

const (
	// DefaultCursorName identifies the relay's cursor row.
	DefaultCursorName = "amqp"
	defaultBatchSize  = 100
)

// EventLister reads the journal.
type EventLister interface {
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// Publisher delivers one event to the broker.
type Publisher interface {
	Publish(ctx context.Context, evt event.Event) error
}

// Config controls relay polling.
type Config struct {
	CursorName string
	Interval   time.Duration
	BatchSize  int
	Logf       func(format string, args ...any)
}

func (c Config) normalized() Config {
	c.CursorName = strings.TrimSpace(c.CursorName)
	if c.CursorName == "" {
		c.CursorName = DefaultCursorName
	}
	if c.Interval <= 0 {
		c.Interval = timeouts.RelayInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Logf == nil {
		c.Logf = log.Printf
	}
	return c
}

// Relay polls the journal and publishes new events.
type Relay struct {
	events    EventLister
	cursors   storage.CursorStore
	publisher Publisher
	cfg       Config
}

// New builds a relay.
func New(events EventLister, cursors storage.CursorStore, publisher Publisher, cfg Config) (*Relay, error) {
	if events == nil {
		return nil, fmt.Errorf("event lister is required")
	}
	if cursors == nil {
		return nil, fmt.Errorf("cursor store is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	return &Relay{events: events, cursors: cursors, publisher: publisher, cfg: cfg.normalized()}, nil
}

// Run drains the journal on start and then on every tick until ctx ends,
// returning ctx.Err().
func (r *Relay) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
		r.cfg.Logf("relay drain failed: %v", err)
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.cfg.Logf("relay drain failed: %v", err)
			}
		}
	}
}

// Drain publishes every event after the saved cursor, advancing the cursor
// after each delivery. It stops at the first failure so the failed event is
// retried first on the next call. It returns the number of events published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	cursor, err := r.cursors.GetCursor(ctx, r.cfg.CursorName)
	if err != nil {
		return 0, fmt.Errorf("load relay cursor: %w", err)
	}

	published := 0
	for {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		events, err := r.events.ListEvents(ctx, cursor, r.cfg.BatchSize)
		if err != nil {
			return published, fmt.Errorf("list events after %d: %w", cursor, err)
		}
		if len(events) == 0 {
			return published, nil
		}
		for _, evt := range events {
			if err := r.publisher.Publish(ctx, evt); err != nil {
				return published, fmt.Errorf("publish event %d: %w", evt.Seq, err)
			}
			if err := r.cursors.SaveCursor(ctx, r.cfg.CursorName, evt.Seq); err != nil {
				return published, fmt.Errorf("save relay cursor %d: %w", evt.Seq, err)
			}
			cursor = evt.Seq
			published++
		}
		if len(events) < r.cfg.BatchSize {
			return published, nil
		}
	}
}
