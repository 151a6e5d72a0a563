package payment

// ProcessRequest is the checkout payload.
type ProcessRequest struct {
	Amount     int    `json:"amount"`
	Method     string `json:"method" validate:"required"`
	CardNumber string `json:"card_number" validate:"omitempty,numeric,min=12,max=19"`
}

// Receipt is returned for an approved payment.
type Receipt struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ApprovalNumber string `json:"approval_number"`
	ReceiptNumber  string `json:"receipt_number"`
	Amount         int    `json:"amount"`
}
