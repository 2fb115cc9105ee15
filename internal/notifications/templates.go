package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names.
const (
	TemplateOrderReceipt  = "order_receipt"
	TemplateOrderAdmin    = "order_admin"
	TemplateOrderStatus   = "order_status"
	TemplatePasswordReset = "password_reset"
)

var templates = mustParseTemplates(TemplateOrderReceipt, TemplateOrderAdmin, TemplateOrderStatus, TemplatePasswordReset)

func mustParseTemplates(names ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		out[name] = template.Must(template.ParseFS(templateFS,
			"templates/layout.html",
			"templates/order_summary.html",
			"templates/"+name+".html",
		))
	}
	return out
}

type viewItem struct {
	Name      string
	Quantity  int
	LineTotal string
}

// view feeds every template; unused fields stay empty.
type view struct {
	Subject         string
	StoreName       string
	ContactPhone    string
	ContactEmail    string
	CustomerName    string
	CustomerEmail   string
	OrderRef        string
	DeliveryLabel   string
	PaymentLabel    string
	PaymentMethod   string
	Items           []viewItem
	Subtotal        string
	DeliveryFee     string
	Total           string
	Currency        string
	Address         string
	Phone           string
	Notes           string
	OrderURL        string
	AdminURL        string
	PaymentProofURL string
	StatusLabel     string
	Reason          string
	ResetURL        string
	ExpiresAt       string
}

func render(name string, data view) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
