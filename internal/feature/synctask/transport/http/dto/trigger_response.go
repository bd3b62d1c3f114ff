package dto

// TriggerResponse is the body returned by the webhook trigger endpoint.
type TriggerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"

	MessageAccepted       = "Task accepted and is running in the background."
	MessageAlreadyRunning = "A task is already running. Please try again later."
	MessageShuttingDown   = "Service is shutting down."
)
