package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/uastudio/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// NoticeJobArgs carries a domain notice to the background worker.
// River serializes it as JSON into its job table, so the worker never has
// to look at engine state.
type NoticeJobArgs struct {
	Notice    string    `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
	Count     int       `json:"count"`
	Exhausted bool      `json:"exhausted,omitempty"`
	At        time.Time `json:"at"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (NoticeJobArgs) Kind() string { return "notice.published" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a notice as an async job.
func (p *Publisher) Publish(ctx context.Context, notice domain.Notice) error {
	_, err := p.client.Insert(ctx, NoticeJobArgs{
		Notice:    string(notice.Kind),
		SessionID: notice.SessionID,
		Count:     notice.Count,
		Exhausted: notice.Exhausted,
		At:        notice.At,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing notice job: %w", err)
	}
	return nil
}
