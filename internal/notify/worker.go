package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// PushSender is the external push transport (FCM, APNs, ...). The worker only
// hands payloads over; delivery guarantees belong to the transport.
type PushSender interface {
	SendPush(ctx context.Context, userID int64, title, body string, data map[string]string) error
}

type globalSweeper interface {
	RunGlobalSweep(ctx context.Context) error
}

// NewServer builds the asynq worker server consuming the notify and retention
// queues.
func NewServer(redisURL string) (*asynq.Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("notify: parse redis url: %w", err)
	}

	return asynq.NewServer(opt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"notify":    3,
			"retention": 1,
			"default":   1,
		},
	}), nil
}

// NewSweepScheduler registers the daily global-sweep trigger. The scheduler
// only enqueues the task; the retention logic itself stays a plain callable.
func NewSweepScheduler(redisURL, cronSpec string) (*asynq.Scheduler, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("notify: parse redis url: %w", err)
	}

	scheduler := asynq.NewScheduler(opt, nil)
	task := asynq.NewTask(TypeGlobalSweep, nil)
	if _, err := scheduler.Register(cronSpec, task, asynq.Queue("retention")); err != nil {
		return nil, fmt.Errorf("notify: register sweep schedule: %w", err)
	}

	return scheduler, nil
}

// RegisterHandlers binds task handlers onto the worker mux.
func RegisterHandlers(mux *asynq.ServeMux, sender PushSender, sweeper globalSweeper, log *zap.Logger) {
	mux.HandleFunc(TypePushNotification, func(ctx context.Context, t *asynq.Task) error {
		var payload PushPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			// Malformed payloads never become deliverable; drop instead of retrying.
			log.Error("push task: malformed payload", zap.Error(err))
			return nil
		}

		if err := sender.SendPush(ctx, payload.UserID, payload.Title, payload.Body, payload.Data); err != nil {
			log.Warn("push send failed",
				zap.Int64("user_id", payload.UserID),
				zap.Error(err))
			return err
		}
		return nil
	})

	mux.HandleFunc(TypeGlobalSweep, func(ctx context.Context, _ *asynq.Task) error {
		return sweeper.RunGlobalSweep(ctx)
	})
}

// LogSender is the default push transport used until a real provider is
// wired: it records the notification and succeeds.
type LogSender struct {
	Log *zap.Logger
}

func (s *LogSender) SendPush(_ context.Context, userID int64, title, body string, data map[string]string) error {
	s.Log.Info("push notification",
		zap.Int64("user_id", userID),
		zap.String("title", title),
		zap.String("body", body),
		zap.Any("data", data))
	return nil
}
