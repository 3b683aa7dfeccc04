package financing

import (
	"context"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrCustomerNotFound means the backend answered and holds no such customer
	ErrCustomerNotFound = errors.New("financing: customer not found")
	// ErrBackendUnavailable covers transport failures, timeouts and 5xx answers
	ErrBackendUnavailable = errors.New("financing: backend unavailable")
	// ErrBackendRejected covers non-2xx answers other than 404 and 5xx
	ErrBackendRejected = errors.New("financing: backend rejected request")
	// ErrBackendUnauthorized is a 401/403 answer: the console's own credentials were refused
	ErrBackendUnauthorized = fmt.Errorf("%w: credentials refused", ErrBackendRejected)
	// ErrInvalidResponse means the backend answered with a body that is not JSON
	ErrInvalidResponse = errors.New("financing: invalid backend response")
	// ErrInvalidDebt means an installment debt failed validation before being sent
	ErrInvalidDebt = errors.New("financing: invalid installment debt")
)

// IsConnectivityError reports whether err means the backend could not be
// consulted, as opposed to answering that nothing matched.
func IsConnectivityError(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, ErrBackendRejected) ||
		errors.Is(err, ErrInvalidResponse)
}

// IsNoSuchRecord reports whether err only rules out the record that was asked
// for: a 404, or a 4xx rejection that is not a credentials failure.
func IsNoSuchRecord(err error) bool {
	if errors.Is(err, ErrCustomerNotFound) {
		return true
	}
	return errors.Is(err, ErrBackendRejected) && !errors.Is(err, ErrBackendUnauthorized)
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// CustomerDirectory reads customers from the financing backend
type CustomerDirectory interface {
	// LookupByID returns ErrCustomerNotFound when the backend has no such customer
	LookupByID(ctx context.Context, id int64) (*Customer, error)
	// Search runs the backend's free-text search; an empty slice means no results
	Search(ctx context.Context, query string) ([]Customer, error)
	// SearchByIdentification searches on the identification field only
	SearchByIdentification(ctx context.Context, identification string) ([]Customer, error)
}

// DebtLedger writes installment debts to the financing backend
type DebtLedger interface {
	CreateInstallmentDebt(ctx context.Context, debt *InstallmentDebt) error
}
