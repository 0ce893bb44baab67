package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"casedocs/pkg/platform/circuit"
	"casedocs/pkg/platform/sentinel"
)

// EventType names a job lifecycle event.
type EventType string

const (
	EventCompleted EventType = "job.completed"
	EventRetrying  EventType = "job.retrying"
	EventFailed    EventType = "job.failed"
)

// Event is published after every worker pass that handled a job.
type Event struct {
	Type         EventType `json:"type"`
	JobID        string    `json:"job_id"`
	CaseID       string    `json:"case_id"`
	TemplateType string    `json:"template_type"`
	RetryCount   int       `json:"retry_count"`
	Error        string    `json:"error,omitempty"`
	ResultPath   string    `json:"result_path,omitempty"`
	Coverage     *int      `json:"coverage,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishJobEvent(context.Context, Event) error { return nil }

// MessageProducer writes one keyed message to the events topic.
type MessageProducer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// ErrEventsSuspended is returned while the publisher's breaker is open.
var ErrEventsSuspended = fmt.Errorf("job events suspended after repeated broker failures: %w", sentinel.ErrUnavailable)

// BrokerPublisher encodes events as JSON keyed by job ID, so all events of one
// job land on the same partition in order. A circuit breaker skips the broker
// after consecutive failures so worker passes do not each wait out a delivery
// timeout.
type BrokerPublisher struct {
	producer MessageProducer
	breaker  *circuit.Breaker
}

type PublisherOption func(*BrokerPublisher)

func WithBreaker(b *circuit.Breaker) PublisherOption {
	return func(p *BrokerPublisher) {
		p.breaker = b
	}
}

func NewBrokerPublisher(producer MessageProducer, opts ...PublisherOption) *BrokerPublisher {
	p := &BrokerPublisher{
		producer: producer,
		breaker:  circuit.New("job-events", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *BrokerPublisher) PublishJobEvent(ctx context.Context, event Event) error {
	if !p.breaker.Allow() {
		return ErrEventsSuspended
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode job event: %w", err)
	}
	if err := p.producer.Publish(ctx, event.JobID, payload); err != nil {
		p.breaker.RecordFailure()
		return fmt.Errorf("publish %s for job %s: %w", event.Type, event.JobID, err)
	}
	p.breaker.RecordSuccess()
	return nil
}
