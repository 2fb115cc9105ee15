package enums

// DeliveryType is how an order reaches the customer.
type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
)

var deliveryTypes = []DeliveryType{DeliveryTypeDelivery, DeliveryTypePickup}

func (d DeliveryType) String() string { return string(d) }
func (d DeliveryType) IsValid() bool  { return oneOf(d, deliveryTypes) }

func ParseDeliveryType(raw string) (DeliveryType, error) {
	return parseOneOf(raw, deliveryTypes, "delivery type")
}
