package domain

const EventPaymentStatusChanged = "PaymentStatusChanged"

type PaymentStatusChanged struct {
	OrderID        string
	From           Status
	To             Status
	TransactionRef string
}

// GatewayReport is what the payment gateway publishes for a status change.
type GatewayReport struct {
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	TransactionRef string `json:"transaction_ref"`
}
