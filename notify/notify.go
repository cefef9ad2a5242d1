// Package notify dispatches approval-state events to downstream channels.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/core"
)

// =============================================================================
// LOG NOTIFIER
// =============================================================================

// LogNotifier writes every event as a structured log entry.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, ev core.Event) error {
	n.log.WithFields(logrus.Fields{
		"kind":        ev.Kind,
		"subject_id":  ev.SubjectID,
		"employee_id": ev.EmployeeID,
		"actor_id":    ev.ActorID,
		"from":        ev.From,
		"to":          ev.To,
	}).Info("event")
	return nil
}

// =============================================================================
// REDIS NOTIFIER
// =============================================================================

// RedisNotifier publishes events as JSON on a pub/sub channel.
type RedisNotifier struct {
	rdb     redis.UniversalClient
	channel string
}

func NewRedisNotifier(rdb redis.UniversalClient, channel string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Kind, err)
	}
	return nil
}

// =============================================================================
// FAN-OUT
// =============================================================================

// Multi delivers to every notifier and joins their errors.
type Multi []core.Notifier

func (m Multi) Notify(ctx context.Context, ev core.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
