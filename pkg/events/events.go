// Package events publishes leave lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/pkg/jobs"
)

// Event types.
const (
	TypeDecisionIssued  = "leave.decision.issued"
	TypeRequestCreated  = "leave.request.created"
	TypeRequestReviewed = "leave.request.reviewed"
)

// DecisionIssued is emitted once a decision document has been stored.
type DecisionIssued struct {
	LeaveRequestID string    `json:"leave_request_id"`
	EmployeeID     string    `json:"employee_id"`
	EmployeeName   string    `json:"employee_name"`
	WorkEmail      string    `json:"work_email,omitempty"`
	Recipients     []string  `json:"recipients,omitempty"`
	DecisionPath   string    `json:"decision_path"`
	IssuedBy       string    `json:"issued_by"`
	IssuedAt       time.Time `json:"issued_at"`
}

// RequestChanged is emitted when a leave request is created or reviewed.
type RequestChanged struct {
	LeaveRequestID string    `json:"leave_request_id"`
	EmployeeID     string    `json:"employee_id"`
	Status         string    `json:"status"`
	Actor          string    `json:"actor"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Message is a serialized event ready for delivery.
type Message struct {
	Type    string
	Key     string
	Payload []byte
}

// Publisher delivers serialized events.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, Message) error { return nil }

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes events to a single topic keyed by aggregate id.
type KafkaPublisher struct {
	writer kafkaWriter
}

// NewKafkaWriter returns a writer balanced by key so events of one request
// stay ordered.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher wraps writer.
func NewKafkaPublisher(writer kafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.Type)},
		},
	})
}

// Dispatcher hands events to a background queue so request handlers never
// wait on the broker.
type Dispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewDispatcher builds a dispatcher whose queue delivers through publisher.
func NewDispatcher(publisher Publisher, cfg jobs.QueueConfig) *Dispatcher {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		return publisher.Publish(ctx, Message{Type: job.Type, Key: job.Key, Payload: job.Payload})
	}
	return &Dispatcher{
		queue:  jobs.NewQueue("events", handler, cfg),
		logger: cfg.Logger,
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) { d.queue.Start(ctx) }

// Stop waits for the workers to exit.
func (d *Dispatcher) Stop() { d.queue.Stop() }

// Emit serializes payload and queues it. Delivery failures are logged, never
// returned, because the state change has already been committed.
func (d *Dispatcher) Emit(eventType, key string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Warn("encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: eventType, Key: key, Payload: body}
	if err := d.queue.Enqueue(job); err != nil {
		d.logger.Warn("queue event", zap.String("type", eventType), zap.String("key", key), zap.Error(fmt.Errorf("enqueue: %w", err)))
	}
}
