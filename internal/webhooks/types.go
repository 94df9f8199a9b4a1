package webhooks

// Response messages.
const (
	MessageProcessed   = "Webhook processed successfully"
	ErrorUnauthorized  = "Unauthorized"
	ErrorMethodDenied  = "Method not allowed"
	ErrorInternal      = "Internal server error"
	ErrorRateLimited   = "Too many requests"
	timestampISOLayout = "2006-01-02T15:04:05.000Z"
)

// Ack is the body returned for an accepted delivery.
type Ack struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
}

// ErrorResponse is the body returned for rejected or failed deliveries.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
