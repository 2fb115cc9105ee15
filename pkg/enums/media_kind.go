package enums

// MediaKind classifies uploaded objects; it selects the storage prefix and
// the allowed mime types.
type MediaKind string

const (
	MediaKindPaymentProof MediaKind = "payment_proof"
	MediaKindCategory     MediaKind = "category"
	MediaKindProduct      MediaKind = "product"
	MediaKindHero         MediaKind = "hero"
)

var mediaKinds = []MediaKind{MediaKindPaymentProof, MediaKindCategory, MediaKindProduct, MediaKindHero}

func (k MediaKind) String() string { return string(k) }
func (k MediaKind) IsValid() bool  { return oneOf(k, mediaKinds) }

func ParseMediaKind(raw string) (MediaKind, error) {
	return parseOneOf(raw, mediaKinds, "media kind")
}
