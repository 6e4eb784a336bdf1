// Package results publishes resolved at-bats to an SQS queue for downstream
// consumers (leaderboards, analytics).
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"atbat/internal/prediction"
	"atbat/internal/session"
	"atbat/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Message is the JSON body of one result.
type Message struct {
	MessageID     string        `json:"message_id"`
	SessionID     string        `json:"session_id"`
	RequestID     string        `json:"request_id,omitempty"`
	ScenarioIndex int           `json:"scenario_index"`
	Swing         *types.Swing  `json:"swing,omitempty"`
	Outcome       types.Outcome `json:"outcome"`
	HomeRun       bool          `json:"home_run"`
	Confidence    float64       `json:"confidence"`
	Probabilities []float64     `json:"probabilities"`
	ResolvedAt    time.Time     `json:"resolved_at"`
}

// Publisher sends one message per resolved at-bat.
type Publisher struct {
	client   SQSSender
	queueURL string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPublisher creates a Publisher for queueURL.
func NewPublisher(client SQSSender, queueURL string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		queueURL: queueURL,
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// NewMessage builds the message for a resolved session.
func NewMessage(ctx context.Context, s *session.Session, result prediction.Result) Message {
	return Message{
		MessageID:     uuid.NewString(),
		SessionID:     s.ID,
		RequestID:     types.GetRequestID(ctx),
		ScenarioIndex: s.ScenarioIndex,
		Swing:         s.LastSwing,
		Outcome:       s.Outcome,
		HomeRun:       result.HomeRun,
		Confidence:    result.Confidence,
		Probabilities: result.Probabilities,
		ResolvedAt:    s.UpdatedAt,
	}
}

// Publish sends msg to the queue.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("results: failed to marshal message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"outcome": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Outcome)),
			},
		},
	}
	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("results: failed to send message to %s: %w", p.queueURL, err)
	}

	p.logger.DebugContext(ctx, "result published",
		"queue_url", p.queueURL,
		"message_id", msg.MessageID,
		"session_id", msg.SessionID,
		"outcome", string(msg.Outcome),
	)
	return nil
}

// RecordResolution implements session.ResolutionSink. Failures are logged
// and never reach the player.
func (p *Publisher) RecordResolution(ctx context.Context, s *session.Session, result prediction.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	msg := NewMessage(ctx, s, result)
	if err := p.Publish(ctx, msg); err != nil {
		p.logger.WarnContext(ctx, "result not published",
			"error", err.Error(),
			"session_id", s.ID,
			"message_id", msg.MessageID,
		)
	}
}
