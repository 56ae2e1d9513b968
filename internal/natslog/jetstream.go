package natslog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carebridge/shared-care-platform/internal/model"
)

const (
	// StreamName is the name of the conversation log stream.
	StreamName = "CARE_THREADS"

	// SubjectPrefix is the prefix for all conversation subjects.
	SubjectPrefix = "care"
)

// JetStreamLog stores conversation messages in a NATS JetStream stream.
// The stream sequence doubles as the message id, which makes ids positive,
// globally unique, and monotonically increasing in append order.
type JetStreamLog struct {
	client *Client
}

var _ Log = (*JetStreamLog)(nil)

// NewJetStreamLog creates a log over an established NATS client.
func NewJetStreamLog(client *Client) *JetStreamLog {
	return &JetStreamLog{client: client}
}

// EnsureStream ensures the conversation stream exists.
func (l *JetStreamLog) EnsureStream(ctx context.Context) error {
	js := l.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 365 * 24 * time.Hour, // clinical retention
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Shared-care conversation messages",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// MessageSubject returns the subject for a message.
func MessageSubject(conversationID string, sender model.SenderClass) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, conversationID, sender)
}

// ConversationFilter returns the filter subject for all of a
// conversation's messages.
func ConversationFilter(conversationID string) string {
	return fmt.Sprintf("%s.%s.msg.>", SubjectPrefix, conversationID)
}

// Append publishes the message and assigns the stream sequence as its id.
func (l *JetStreamLog) Append(ctx context.Context, msg *model.Message) (int64, error) {
	subject := MessageSubject(msg.ConversationID, msg.Sender)

	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	ack, err := l.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}

	msg.ID = int64(ack.Sequence)
	return msg.ID, nil
}

// After reads messages past afterID via an ephemeral consumer.
func (l *JetStreamLog) After(ctx context.Context, conversationID string, afterID int64, limit int) ([]model.Message, error) {
	js := l.client.JetStream()

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: ConversationFilter(conversationID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if afterID > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = uint64(afterID) + 1
	}

	consumer, err := js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	if limit <= 0 {
		limit = 1000
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	var messages []model.Message
	for msg := range batch.Messages() {
		var message model.Message
		if err := json.Unmarshal(msg.Data(), &message); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			message.ID = int64(meta.Sequence.Stream)
		}
		messages = append(messages, message)
	}

	if batch.Error() != nil && !errors.Is(batch.Error(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("batch error: %w", batch.Error())
	}

	return messages, nil
}

// Latest returns the newest message id for a conversation.
func (l *JetStreamLog) Latest(ctx context.Context, conversationID string) (int64, error) {
	js := l.client.JetStream()

	stream, err := js.Stream(ctx, StreamName)
	if err != nil {
		return 0, fmt.Errorf("failed to open stream: %w", err)
	}

	raw, err := stream.GetLastMsgForSubject(ctx, ConversationFilter(conversationID))
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read last message: %w", err)
	}
	return int64(raw.Sequence), nil
}

// CountAfter counts messages past afterID.
func (l *JetStreamLog) CountAfter(ctx context.Context, conversationID string, afterID int64) (int, error) {
	msgs, err := l.After(ctx, conversationID, afterID, 0)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}
