package domain

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventVariantLowStock    = "VariantLowStock"
)

type OrderPlaced struct {
	OrderID    string
	Number     string
	UserID     string
	TotalCents int64
	Lines      []Line
}

type OrderCancelled struct {
	OrderID  string
	UserID   string
	Released []Line
}

type OrderStatusChanged struct {
	OrderID        string
	From           Status
	To             Status
	TrackingNumber string
}
