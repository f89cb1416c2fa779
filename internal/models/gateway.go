package models

// Gateway payment statuses
const (
	GatewayPaymentCreated    = "created"
	GatewayPaymentAuthorized = "authorized"
	GatewayPaymentCaptured   = "captured"
	GatewayPaymentFailed     = "failed"
	GatewayPaymentRefunded   = "refunded"
)

// GatewayOrderRequest opens an order. Amount is in minor currency units.
type GatewayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrder represents an order on the payment gateway
type GatewayOrder struct {
	Id       string            `json:"id"`
	Entity   string            `json:"entity"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayPayment represents a payment attempt against a gateway order
type GatewayPayment struct {
	Id       string `json:"id"`
	Entity   string `json:"entity"`
	OrderId  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Captured bool   `json:"captured"`
}
