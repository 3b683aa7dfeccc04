package reconciliation

import (
	"fmt"

	"github.com/cobranzas/backend/internal/domain/financing"
)

// Rule identifies which step of the cascade produced a match
type Rule string

const (
	RuleNoteID                Rule = "note_id"
	RuleIdentification        Rule = "identification"
	RuleSurnameIdentification Rule = "surname_identification"
	RuleSurnameName           Rule = "surname_name"
	RuleNone                  Rule = "none"
)

// String returns the string representation
func (r Rule) String() string {
	return string(r)
}

// Trust is how much an operator can rely on a match without checking it
type Trust string

const (
	// TrustConfirmed is a customer ID the store owner wrote down
	TrustConfirmed Trust = "confirmed"
	// TrustHeuristic is a match inferred from identification or name data
	TrustHeuristic Trust = "heuristic"
	// TrustWeak marks a candidate that was returned by a search but failed validation.
	// It only appears in diagnostics; weak candidates are never accepted.
	TrustWeak Trust = "weak"
	TrustNone Trust = "none"
)

// String returns the string representation
func (t Trust) String() string {
	return string(t)
}

// Provenance texts for outcomes that carry no match
const (
	ProvenanceNotFound    = "not found"
	ProvenanceUnavailable = "financing backend unavailable"
)

// Query is what the storefront declares about the buyer
type Query struct {
	CustomerName   string
	Identification string
	OwnerNote      string
}

// Diagnostic is one step of the reconciliation trail
type Diagnostic struct {
	Rule       Rule   `json:"rule"`
	Query      string `json:"query,omitempty"`
	CustomerID int64  `json:"customer_id,omitempty"`
	Trust      Trust  `json:"trust,omitempty"`
	Message    string `json:"message"`
}

// String renders the diagnostic for logs
func (d Diagnostic) String() string {
	s := fmt.Sprintf("[%s] %s", d.Rule, d.Message)
	if d.Query != "" {
		s += fmt.Sprintf(" (query=%q)", d.Query)
	}
	if d.CustomerID != 0 {
		s += fmt.Sprintf(" (customer=%d)", d.CustomerID)
	}
	return s
}

// Result is the outcome of reconciling one order
type Result struct {
	Customer    *financing.Customer
	Rule        Rule
	Trust       Trust
	Provenance  string
	Candidate   string
	Diagnostics []Diagnostic
}

// Matched reports whether a customer was accepted
func (r *Result) Matched() bool {
	return r != nil && r.Customer != nil
}

// CustomerID returns the matched customer's ID, or zero
func (r *Result) CustomerID() int64 {
	if !r.Matched() {
		return 0
	}
	return r.Customer.ID
}
