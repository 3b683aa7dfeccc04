package notification

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cobranzas/backend/internal/domain/storefront"
)

//go:embed templates/*.html
var templateFS embed.FS

// Kind identifies one of the fixed email templates
type Kind string

const (
	KindRejection       Kind = "rejection"
	KindPartialApproval Kind = "partial_approval"
	KindApproval        Kind = "approval"
)

// IsValid checks if the kind is a known template
func (k Kind) IsValid() bool {
	switch k {
	case KindRejection, KindPartialApproval, KindApproval:
		return true
	}
	return false
}

// ErrUnknownTemplate is returned when rendering a kind with no template
var ErrUnknownTemplate = errors.New("notification: unknown template")

// BankTransfer holds the account details shown in partial approval emails
type BankTransfer struct {
	Holder   string
	BankName string
	CBU      string
	Alias    string
	TaxID    string
}

// IsEmpty reports whether no account detail is configured
func (b BankTransfer) IsEmpty() bool {
	return b.Holder == "" && b.BankName == "" && b.CBU == "" && b.Alias == "" && b.TaxID == ""
}

// EmailData is the data every template renders from
type EmailData struct {
	StoreName         string
	CustomerName      string
	OrderNumber       int64
	Total             decimal.Decimal
	CreditAmount      decimal.Decimal
	Shortfall         decimal.Decimal
	Installments      int
	InstallmentAmount decimal.Decimal
	Reason            string
	Bank              *BankTransfer
	Recommendations   []storefront.Product
}

// Renderer renders the email templates
type Renderer struct {
	templates *template.Template
	subjects  map[Kind]string
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("email").Funcs(funcMap()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("notification: failed to parse templates: %w", err)
	}
	return &Renderer{
		templates: tmpl,
		subjects: map[Kind]string{
			KindRejection:       "Tu pedido #%d no pudo ser financiado",
			KindPartialApproval: "Tu pedido #%d fue aprobado parcialmente",
			KindApproval:        "¡Tu pedido #%d fue aprobado!",
		},
	}, nil
}

// Render returns the subject and HTML body for the given kind
func (r *Renderer) Render(kind Kind, data *EmailData) (string, string, error) {
	if !kind.IsValid() {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, kind)
	}
	if data == nil {
		data = &EmailData{}
	}
	if data.Bank != nil && data.Bank.IsEmpty() {
		data.Bank = nil
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, string(kind), data); err != nil {
		return "", "", fmt.Errorf("notification: failed to render %s: %w", kind, err)
	}
	return fmt.Sprintf(r.subjects[kind], data.OrderNumber), buf.String(), nil
}

// =============================================================================
// Template Functions
// =============================================================================

var moneyPrinter = message.NewPrinter(language.MustParse("es-AR"))

func funcMap() template.FuncMap {
	return template.FuncMap{
		"formatMoney": FormatMoney,
		"title":       titleCase,
	}
}

// FormatMoney formats an amount in pesos without decimals
// Example: 30000 -> "$30.000"
func FormatMoney(d decimal.Decimal) string {
	n := d.Round(0).IntPart()
	if n < 0 {
		return "-$" + moneyPrinter.Sprintf("%d", -n)
	}
	return "$" + moneyPrinter.Sprintf("%d", n)
}

func titleCase(s string) string {
	return cases.Title(language.Spanish).String(s)
}
