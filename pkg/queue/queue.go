package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxBatchSize is the SQS limit on entries per batch send.
	MaxBatchSize = 10
	// MaxReceiveCount is the SQS limit on messages per receive.
	MaxReceiveCount = 10
	// MaxWaitTime is the SQS long-poll ceiling.
	MaxWaitTime = 20 * time.Second

	retentionPeriod = 14 * 24 * time.Hour
)

// ErrBatchTooLarge is returned when EnqueueBatch is given more than MaxBatchSize entries.
var ErrBatchTooLarge = errors.New("queue: batch exceeds 10 entries")

// Config describes one logical queue.
type Config struct {
	Region   string
	Endpoint string

	// QueueURL, when set, bypasses name resolution.
	QueueURL  string
	QueueName string

	// DefaultVisibility is applied as the queue attribute at creation time.
	DefaultVisibility time.Duration
}

// Message is one received queue entry. Handle is the receipt handle used for
// acknowledgment and visibility changes; it is only valid while the message
// remains in flight.
type Message struct {
	ID     string
	Body   []byte
	Handle string
}

// Stats reports approximate message counts for a queue.
type Stats struct {
	Pending  int `json:"pending"`
	InFlight int `json:"in_flight"`
	Delayed  int `json:"delayed"`
}

// BatchEntry is one message in a batch send. ID is the caller-supplied
// identifier echoed back in BatchResult; a UUID is assigned when empty.
type BatchEntry struct {
	ID      string
	Body    []byte
	GroupID string
}

// BatchResult partitions a batch send into accepted and rejected entry IDs.
type BatchResult struct {
	Accepted []string
	Rejected []string
}

// Client wraps one SQS queue with the at-least-once primitives the pipeline
// relies on. Delivery is at-least-once: a received but unacknowledged message
// becomes re-deliverable once its visibility timeout elapses.
type Client struct {
	api    sqsiface.SQSAPI
	url    string
	fifo   bool
	logger *zap.Logger
}

// New builds an SQS-backed client, resolving (and if necessary provisioning)
// the queue named in cfg.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return Resolve(sqs.New(sess), cfg, logger)
}

// Resolve builds a Client on top of an existing SQS API handle. The resolved
// URL is cached on the Client for the life of the process.
func Resolve(api sqsiface.SQSAPI, cfg Config, logger *zap.Logger) (*Client, error) {
	url := cfg.QueueURL
	if url == "" {
		resolved, err := getOrCreate(api, cfg, logger)
		if err != nil {
			return nil, err
		}
		url = resolved
	}
	return &Client{
		api:    api,
		url:    url,
		fifo:   strings.HasSuffix(url, ".fifo"),
		logger: logger,
	}, nil
}

func getOrCreate(api sqsiface.SQSAPI, cfg Config, logger *zap.Logger) (string, error) {
	out, err := api.GetQueueUrl(&sqs.GetQueueUrlInput{QueueName: aws.String(cfg.QueueName)})
	if err == nil {
		return aws.StringValue(out.QueueUrl), nil
	}

	var aerr awserr.Error
	if !errors.As(err, &aerr) || aerr.Code() != sqs.ErrCodeQueueDoesNotExist {
		return "", fmt.Errorf("resolve queue %q: %w", cfg.QueueName, err)
	}

	visibility := cfg.DefaultVisibility
	if visibility <= 0 {
		visibility = 15 * time.Minute
	}
	attrs := map[string]*string{
		sqs.QueueAttributeNameVisibilityTimeout:             aws.String(secondsString(visibility)),
		sqs.QueueAttributeNameMessageRetentionPeriod:        aws.String(secondsString(retentionPeriod)),
		sqs.QueueAttributeNameReceiveMessageWaitTimeSeconds: aws.String(secondsString(MaxWaitTime)),
	}
	if strings.HasSuffix(cfg.QueueName, ".fifo") {
		attrs[sqs.QueueAttributeNameFifoQueue] = aws.String("true")
	}

	logger.Info("creating queue", zap.String("queue", cfg.QueueName))
	created, err := api.CreateQueue(&sqs.CreateQueueInput{
		QueueName:  aws.String(cfg.QueueName),
		Attributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("create queue %q: %w", cfg.QueueName, err)
	}
	return aws.StringValue(created.QueueUrl), nil
}

// URL returns the resolved queue URL.
func (c *Client) URL() string {
	return c.url
}

// Enqueue sends one message. On FIFO queues groupID doubles as the ordering
// group and deduplication key.
func (c *Client) Enqueue(ctx context.Context, body []byte, groupID string) (string, error) {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.url),
		MessageBody: aws.String(string(body)),
	}
	if c.fifo && groupID != "" {
		input.MessageGroupId = aws.String(groupID)
		input.MessageDeduplicationId = aws.String(groupID)
	}

	out, err := c.api.SendMessageWithContext(ctx, input)
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return aws.StringValue(out.MessageId), nil
}

// EnqueueBatch sends up to MaxBatchSize messages in one call and partitions the
// outcome by entry ID.
func (c *Client) EnqueueBatch(ctx context.Context, entries []BatchEntry) (BatchResult, error) {
	if len(entries) > MaxBatchSize {
		return BatchResult{}, ErrBatchTooLarge
	}

	batch := make([]*sqs.SendMessageBatchRequestEntry, 0, len(entries))
	for _, entry := range entries {
		id := entry.ID
		if id == "" {
			id = uuid.NewString()
		}
		req := &sqs.SendMessageBatchRequestEntry{
			Id:          aws.String(id),
			MessageBody: aws.String(string(entry.Body)),
		}
		if c.fifo {
			groupID := entry.GroupID
			if groupID == "" {
				groupID = id
			}
			req.MessageGroupId = aws.String(groupID)
			req.MessageDeduplicationId = aws.String(id)
		}
		batch = append(batch, req)
	}

	out, err := c.api.SendMessageBatchWithContext(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(c.url),
		Entries:  batch,
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("enqueue batch: %w", err)
	}

	result := BatchResult{}
	for _, ok := range out.Successful {
		result.Accepted = append(result.Accepted, aws.StringValue(ok.Id))
	}
	for _, failed := range out.Failed {
		result.Rejected = append(result.Rejected, aws.StringValue(failed.Id))
	}
	return result, nil
}

// Receive long-polls for up to max messages. Received messages stay hidden from
// other consumers for the given visibility timeout.
func (c *Client) Receive(ctx context.Context, max int, wait, visibility time.Duration) ([]Message, error) {
	if max < 1 {
		max = 1
	}
	if max > MaxReceiveCount {
		max = MaxReceiveCount
	}
	if wait > MaxWaitTime {
		wait = MaxWaitTime
	}

	out, err := c.api.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.url),
		MaxNumberOfMessages: aws.Int64(int64(max)),
		WaitTimeSeconds:     aws.Int64(int64(wait / time.Second)),
		VisibilityTimeout:   aws.Int64(int64(visibility / time.Second)),
	})
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, msg := range out.Messages {
		messages = append(messages, Message{
			ID:     aws.StringValue(msg.MessageId),
			Body:   []byte(aws.StringValue(msg.Body)),
			Handle: aws.StringValue(msg.ReceiptHandle),
		})
	}
	return messages, nil
}

// Acknowledge deletes a processed message from the queue.
func (c *Client) Acknowledge(ctx context.Context, handle string) error {
	_, err := c.api.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.url),
		ReceiptHandle: aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("acknowledge: %w", err)
	}
	return nil
}

// ExtendVisibility grants an in-flight message more processing time.
func (c *Client) ExtendVisibility(ctx context.Context, handle string, timeout time.Duration) error {
	_, err := c.api.ChangeMessageVisibilityWithContext(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.url),
		ReceiptHandle:     aws.String(handle),
		VisibilityTimeout: aws.Int64(int64(timeout / time.Second)),
	})
	if err != nil {
		return fmt.Errorf("extend visibility: %w", err)
	}
	return nil
}

// Stats returns approximate depth counters for the queue.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	out, err := c.api.GetQueueAttributesWithContext(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(c.url),
		AttributeNames: []*string{
			aws.String(sqs.QueueAttributeNameApproximateNumberOfMessages),
			aws.String(sqs.QueueAttributeNameApproximateNumberOfMessagesNotVisible),
			aws.String(sqs.QueueAttributeNameApproximateNumberOfMessagesDelayed),
		},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}

	return Stats{
		Pending:  attrInt(out.Attributes, sqs.QueueAttributeNameApproximateNumberOfMessages),
		InFlight: attrInt(out.Attributes, sqs.QueueAttributeNameApproximateNumberOfMessagesNotVisible),
		Delayed:  attrInt(out.Attributes, sqs.QueueAttributeNameApproximateNumberOfMessagesDelayed),
	}, nil
}

// Purge drops every message in the queue.
func (c *Client) Purge(ctx context.Context) error {
	_, err := c.api.PurgeQueueWithContext(ctx, &sqs.PurgeQueueInput{
		QueueUrl: aws.String(c.url),
	})
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	c.logger.Info("purged queue", zap.String("url", c.url))
	return nil
}

func attrInt(attrs map[string]*string, name string) int {
	value := aws.StringValue(attrs[name])
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func secondsString(d time.Duration) string {
	return strconv.Itoa(int(d / time.Second))
}
