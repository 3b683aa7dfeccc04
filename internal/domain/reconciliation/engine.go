// Package reconciliation links a storefront order to a financing customer.
//
// The storefront and the financing backend share no key, so the engine runs a
// fixed cascade and stops at the first rule that accepts a record:
//
//  1. customer IDs written in the order's owner note, looked up directly
//  2. the declared identification (and the national ID inside a tax ID), searched
//     and validated by digit containment
//  3. the declared surname, searched and validated by identification digits or
//     by shared name words
//
// Each result carries the rule, a trust level and the diagnostic trail so an
// operator can judge a match before acting on it.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cobranzas/backend/internal/domain/financing"
)

// Engine runs the matching cascade against a customer directory
type Engine struct {
	directory financing.CustomerDirectory
}

// NewEngine creates an engine backed by directory
func NewEngine(directory financing.CustomerDirectory) *Engine {
	return &Engine{directory: directory}
}

// Reconcile finds the financing customer behind q.
//
// A nil error with an unmatched result means every rule ran and nothing was
// accepted. When the backend cannot be consulted the cascade stops, the result
// reports ProvenanceUnavailable with the trail gathered so far and the error
// wraps the adapter's connectivity error.
func (e *Engine) Reconcile(ctx context.Context, q Query) (*Result, error) {
	run := &cascade{
		ctx:       ctx,
		directory: e.directory,
		result:    &Result{Rule: RuleNone, Trust: TrustNone},
	}

	candidates := IdentificationCandidates(q.Identification)

	steps := []func() (bool, error){
		func() (bool, error) { return run.byNoteID(q.OwnerNote) },
		func() (bool, error) { return run.byIdentification(candidates) },
		func() (bool, error) { return run.bySurname(q.CustomerName, candidates) },
	}
	for _, step := range steps {
		matched, err := step()
		if err != nil {
			return run.abort(err)
		}
		if matched {
			return run.result, nil
		}
	}

	run.result.Provenance = ProvenanceNotFound
	run.trace(Diagnostic{Rule: RuleNone, Message: "no rule accepted a customer"})
	return run.result, nil
}

// cascade holds the state of one Reconcile call
type cascade struct {
	ctx       context.Context
	directory financing.CustomerDirectory
	result    *Result
}

func (c *cascade) trace(d Diagnostic) {
	c.result.Diagnostics = append(c.result.Diagnostics, d)
}

func (c *cascade) accept(customer financing.Customer, rule Rule, trust Trust, candidate, provenance string) {
	c.result.Customer = &customer
	c.result.Rule = rule
	c.result.Trust = trust
	c.result.Candidate = candidate
	c.result.Provenance = provenance
	c.trace(Diagnostic{
		Rule:       rule,
		Query:      candidate,
		CustomerID: customer.ID,
		Trust:      trust,
		Message:    "accepted: " + provenance,
	})
}

func (c *cascade) abort(err error) (*Result, error) {
	c.result.Customer = nil
	c.result.Rule = RuleNone
	c.result.Trust = TrustNone
	c.result.Candidate = ""
	c.result.Provenance = ProvenanceUnavailable
	c.trace(Diagnostic{Rule: RuleNone, Message: "aborted: " + err.Error()})
	return c.result, fmt.Errorf("reconcile: %w", err)
}

// search treats a not-found answer, or a rejection of the query itself, as an
// empty result set
func (c *cascade) search(rule Rule, query string) ([]financing.Customer, error) {
	records, err := c.directory.Search(c.ctx, query)
	if err != nil && financing.IsNoSuchRecord(err) {
		if !errors.Is(err, financing.ErrCustomerNotFound) {
			c.trace(Diagnostic{Rule: rule, Query: query, Message: "search rejected: " + err.Error()})
		}
		return nil, nil
	}
	return records, err
}

// ---------------------------------------------------------------------------
// Rule 1: customer ID written in the owner note
// ---------------------------------------------------------------------------

func (c *cascade) byNoteID(note string) (bool, error) {
	ids := NoteIDCandidates(note)
	if len(ids) == 0 {
		c.trace(Diagnostic{Rule: RuleNoteID, Message: "no customer ID in owner note"})
		return false, nil
	}

	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.trace(Diagnostic{Rule: RuleNoteID, Query: raw, Message: "not a usable customer ID"})
			continue
		}

		customer, err := c.directory.LookupByID(c.ctx, id)
		if errors.Is(err, financing.ErrCustomerNotFound) || (err == nil && customer == nil) {
			c.trace(Diagnostic{Rule: RuleNoteID, Query: raw, Message: "no customer with this ID"})
			continue
		}
		if financing.IsNoSuchRecord(err) {
			c.trace(Diagnostic{Rule: RuleNoteID, Query: raw, Message: "lookup rejected: " + err.Error()})
			continue
		}
		if err != nil {
			return false, err
		}

		c.accept(*customer, RuleNoteID, TrustConfirmed, raw,
			fmt.Sprintf("matched by ID %s recorded in owner note", raw))
		return true, nil
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Rule 2: identification search with digit containment
// ---------------------------------------------------------------------------

func (c *cascade) byIdentification(candidates []IdentificationCandidate) (bool, error) {
	if len(candidates) == 0 {
		c.trace(Diagnostic{Rule: RuleIdentification, Message: "identification has too few digits to search"})
		return false, nil
	}

	for _, cand := range candidates {
		records, err := c.search(RuleIdentification, cand.Value)
		if err != nil {
			return false, err
		}
		c.trace(Diagnostic{
			Rule:    RuleIdentification,
			Query:   cand.Value,
			Message: fmt.Sprintf("search returned %d record(s)", len(records)),
		})

		for _, rec := range records {
			if ContainsEither(rec.IdentificationDigits(), cand.Value) {
				kind := "full"
				if cand.Derived {
					kind = "derived tax ID"
				}
				c.accept(rec, RuleIdentification, TrustHeuristic, cand.Value,
					fmt.Sprintf("matched by identification number (%s) %s", kind, cand.Value))
				return true, nil
			}
			c.trace(Diagnostic{
				Rule:       RuleIdentification,
				Query:      cand.Value,
				CustomerID: rec.ID,
				Trust:      TrustWeak,
				Message:    fmt.Sprintf("returned by search but identification %q does not contain the candidate", rec.Identification),
			})
		}
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Rule 3: surname search
// ---------------------------------------------------------------------------

func (c *cascade) bySurname(name string, candidates []IdentificationCandidate) (bool, error) {
	surname, ok := Surname(name)
	if !ok {
		c.trace(Diagnostic{Rule: RuleSurnameName, Query: surname, Message: "surname too short to search"})
		return false, nil
	}

	rule := RuleSurnameName
	if len(candidates) > 0 {
		rule = RuleSurnameIdentification
	}
	records, err := c.search(rule, surname)
	if err != nil {
		return false, err
	}

	if len(candidates) > 0 {
		c.trace(Diagnostic{
			Rule:    RuleSurnameIdentification,
			Query:   surname,
			Message: fmt.Sprintf("search returned %d record(s)", len(records)),
		})
		for _, rec := range records {
			digits := rec.IdentificationDigits()
			for _, cand := range candidates {
				if digits != "" && strings.Contains(digits, cand.Value) {
					c.accept(rec, RuleSurnameIdentification, TrustHeuristic, surname,
						fmt.Sprintf("matched by surname %q and identification %s", surname, cand.Value))
					return true, nil
				}
			}
			c.trace(Diagnostic{
				Rule:       RuleSurnameIdentification,
				Query:      surname,
				CustomerID: rec.ID,
				Trust:      TrustWeak,
				Message:    "surname matched but identification does not",
			})
		}
		return false, nil
	}

	c.trace(Diagnostic{
		Rule:    RuleSurnameName,
		Query:   surname,
		Message: fmt.Sprintf("search returned %d record(s)", len(records)),
	})
	declared := NameTokens(name)
	for _, rec := range records {
		shared := SharedTokens(NameTokens(rec.FullName()), declared)
		if shared >= minSharedNameTokens {
			c.accept(rec, RuleSurnameName, TrustHeuristic, surname,
				fmt.Sprintf("matched by surname %q and %d shared name words", surname, shared))
			return true, nil
		}
		c.trace(Diagnostic{
			Rule:       RuleSurnameName,
			Query:      surname,
			CustomerID: rec.ID,
			Trust:      TrustWeak,
			Message:    fmt.Sprintf("name %q shares %d word(s)", rec.FullName(), shared),
		})
	}
	return false, nil
}
