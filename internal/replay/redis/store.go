// Package redis implements the replay store on Redis lists, one list per
// stream, so multiple server instances can share a replay window.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"httpcore/internal/core"
	"httpcore/internal/replay"
	"httpcore/pkg/errors"
)

// record is the JSON shape stored per event.
type record struct {
	ID    string `json:"id"`
	Type  string `json:"type,omitempty"`
	Data  string `json:"data"`
	Retry int    `json:"retry,omitempty"`
}

// Store implements replay.Store using Redis lists.
type Store struct {
	client   Client
	capacity int64
}

// NewStore creates a Redis-backed store.
func NewStore(client Client, config *replay.Config) *Store {
	return &Store{
		client:   client,
		capacity: int64(config.CapacityOrDefault()),
	}
}

func streamKey(stream string) string {
	return fmt.Sprintf("sse:replay:%s", stream)
}

// Append records one event and trims the list to capacity.
func (s *Store) Append(ctx context.Context, stream string, ev *core.SSEEvent) error {
	payload, err := json.Marshal(record{ID: ev.ID, Type: ev.Type, Data: ev.Data, Retry: ev.Retry})
	if err != nil {
		return errors.NewError(errors.ErrorTypeInternal, "failed to encode replay event").WithCause(err)
	}

	key := streamKey(stream)
	if err := s.client.RPush(ctx, key, payload); err != nil {
		return errors.NewError(errors.ErrorTypeUnavailable, "failed to append replay event").WithCause(err)
	}
	if err := s.client.LTrim(ctx, key, -s.capacity, -1); err != nil {
		return errors.NewError(errors.ErrorTypeUnavailable, "failed to trim replay stream").WithCause(err)
	}
	return nil
}

// After returns the buffered events following lastID, oldest first.
func (s *Store) After(ctx context.Context, stream, lastID string) ([]*core.SSEEvent, error) {
	raw, err := s.client.LRange(ctx, streamKey(stream), 0, -1)
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeUnavailable, "failed to read replay stream").WithCause(err)
	}

	events := make([]*core.SSEEvent, 0, len(raw))
	for _, item := range raw {
		var rec record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			// Skip entries written by incompatible versions.
			continue
		}
		events = append(events, &core.SSEEvent{ID: rec.ID, Type: rec.Type, Data: rec.Data, Retry: rec.Retry})
	}

	if lastID == "" {
		return events, nil
	}
	for i, ev := range events {
		if ev.ID == lastID {
			return events[i+1:], nil
		}
	}
	return events, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
