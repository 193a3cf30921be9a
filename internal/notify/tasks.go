package notify

// Task type names shared by the queue client, scheduler and worker.
const (
	TypePushNotification = "notify:push"
	TypeGlobalSweep      = "retention:global_sweep"
)

// PushPayload is the JSON payload carried by a notify:push task.
type PushPayload struct {
	UserID int64             `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}
