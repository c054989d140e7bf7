package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"voicetask-backend/pkg/sse"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// TaskChangeMessage is the wire format fanned out through Pub/Sub so
// every instance can invalidate its own connected clients
type TaskChangeMessage struct {
	UserID    string    `json:"user_id"`
	TaskID    string    `json:"task_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

type Service struct {
	pubsubClient *pubsub.Client
	sseManager   *sse.Manager
	topicName    string
	subName      string
}

// NewService connects to Pub/Sub. Each instance gets its own
// subscription so a change published anywhere reaches every instance.
func NewService(projectID, topicName string, sseManager *sse.Manager, credentialsFile string) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient: client,
		sseManager:   sseManager,
		topicName:    topicName,
		subName:      fmt.Sprintf("%s-sub-%s", topicName, uuid.New().String()[:8]),
	}, nil
}

// PublishTaskChange pushes one change onto the shared topic
func (s *Service) PublishTaskChange(ctx context.Context, userID, taskID, action string) error {
	msg := TaskChangeMessage{
		UserID:    userID,
		TaskID:    taskID,
		Action:    action,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	topic := s.pubsubClient.Topic(s.topicName)
	result := topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish task change: %v", err)
	}

	return nil
}

// Start subscribes to the topic and forwards each change to local SSE
// clients. It blocks until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting task change fanout with topic: %s, subscription: %s", s.topicName, s.subName)

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking topic existence: %v", err)
		return
	}
	if !topicExists {
		if topic, err = s.pubsubClient.CreateTopic(ctx, s.topicName); err != nil {
			log.Printf("[PubSub] Failed to create topic: %v", err)
			return
		}
		log.Printf("[PubSub] Created topic: %s", s.topicName)
	}

	sub, err := s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:            topic,
		AckDeadline:      10 * time.Second,
		ExpirationPolicy: 24 * time.Hour,
	})
	if err != nil {
		log.Printf("[PubSub] Failed to create subscription: %v", err)
		return
	}
	log.Printf("[PubSub] Created subscription: %s", s.subName)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sub.Delete(cleanupCtx); err != nil {
			log.Printf("[PubSub] Failed to delete subscription %s: %v", s.subName, err)
		}
	}()

	log.Printf("[PubSub] Listening for task changes on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

// Close releases the Pub/Sub client
func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

func (s *Service) handleMessage(msg *pubsub.Message) {
	var change TaskChangeMessage
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		log.Printf("[PubSub] Failed to unmarshal task change: %v", err)
		return
	}

	s.sseManager.SendToUser(change.UserID, "task_update", map[string]interface{}{
		"task_id":   change.TaskID,
		"action":    change.Action,
		"timestamp": change.Timestamp,
	})
}
