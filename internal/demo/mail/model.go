package mail

// SendRequest is the outbound mail payload.
type SendRequest struct {
	To      string `json:"to" validate:"required"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body"`
}

// SendResult reports a delivered message.
type SendResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}
