package enums

// PaymentMethod is how a customer settles an order. InstaPay transfers are
// checked by an admin against the uploaded proof.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodInstaPay PaymentMethod = "instapay"
)

var paymentMethods = []PaymentMethod{PaymentMethodCash, PaymentMethodInstaPay}

func (p PaymentMethod) String() string { return string(p) }
func (p PaymentMethod) IsValid() bool  { return oneOf(p, paymentMethods) }

// RequiresProof is true when checkout must carry a transfer screenshot.
func (p PaymentMethod) RequiresProof() bool { return p == PaymentMethodInstaPay }

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	return parseOneOf(raw, paymentMethods, "payment method")
}
