package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// NewPubsubClient creates and returns a new Pub/Sub client for the given project ID.
func NewPubsubClient(ctx context.Context, projectID string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a pubsub client")
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}

	return client, nil
}

// JobMessage is the payload published for each queued job.
type JobMessage struct {
	DocID string `json:"doc_id"`
}

// Publisher sends job notifications to the worker topic.
type Publisher struct {
	topic *pubsub.Topic
}

// NewPublisher creates a publisher for the named topic.
func NewPublisher(client *pubsub.Client, topicID string) *Publisher {
	return &Publisher{topic: client.Topic(topicID)}
}

// PublishJob publishes the job ID and waits for the server ack, so a
// caller that reports the job as queued knows the message is durable.
func (p *Publisher) PublishJob(ctx context.Context, docID string) error {
	payload, err := json.Marshal(JobMessage{DocID: docID})
	if err != nil {
		return fmt.Errorf("encoding job message: %w", err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{Data: payload})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publishing job %s: %w", docID, err)
	}
	return nil
}
