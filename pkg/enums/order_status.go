package enums

import "slices"

// OrderStatus tracks the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusPendingPayment             OrderStatus = "pending_payment"
	OrderStatusPaymentConfirmationPending OrderStatus = "payment_confirmation_pending"
	OrderStatusProcessing                 OrderStatus = "processing"
	OrderStatusWrapping                   OrderStatus = "wrapping"
	OrderStatusOutForDelivery             OrderStatus = "out_for_delivery"
	OrderStatusReadyForPickup             OrderStatus = "ready_for_pickup"
	OrderStatusCompleted                  OrderStatus = "completed"
	OrderStatusCancelled                  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaymentConfirmationPending,
	OrderStatusProcessing,
	OrderStatusWrapping,
	OrderStatusOutForDelivery,
	OrderStatusReadyForPickup,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func (s OrderStatus) String() string { return string(s) }
func (s OrderStatus) IsValid() bool  { return oneOf(s, orderStatuses) }

// CustomerCancellable reports whether the owner may still cancel from this status.
func (s OrderStatus) CustomerCancellable() bool {
	return s == OrderStatusPendingPayment || s == OrderStatusProcessing
}

// OrderStatuses returns every legal status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return slices.Clone(orderStatuses)
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	return parseOneOf(raw, orderStatuses, "order status")
}
