package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Skotchmaster/waterworks/internal/models"
)

// Publisher delivers one message to a broker.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// StreamSink signs entries and hands them to a broker publisher.
type StreamSink struct {
	Signer *Signer
	Pub    Publisher
}

func (s *StreamSink) Publish(ctx context.Context, entry *models.ActivityLog) error {
	env, err := s.Signer.Seal(entry)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("audit: marshal envelope: %w", err)
	}
	key := "anonymous"
	if entry.UserID != nil {
		key = strconv.FormatUint(uint64(*entry.UserID), 10)
	}
	return s.Pub.Publish(ctx, key, payload)
}

type SinkFunc func(ctx context.Context, entry *models.ActivityLog) error

func (f SinkFunc) Publish(ctx context.Context, entry *models.ActivityLog) error {
	return f(ctx, entry)
}
