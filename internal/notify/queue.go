package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Queue enqueues push-notification tasks onto the Redis-backed worker queue.
// It satisfies services.PushEnqueuer.
type Queue struct {
	client *asynq.Client
}

func NewQueue(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("notify: parse redis url: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

func (q *Queue) EnqueuePush(ctx context.Context, userID int64, title, body string, data map[string]string) error {
	if userID <= 0 {
		return fmt.Errorf("notify: user id is required")
	}

	payload, err := json.Marshal(PushPayload{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal push payload: %w", err)
	}

	task := asynq.NewTask(TypePushNotification, payload)
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue("notify"),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("notify: enqueue push: %w", err)
	}

	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}
