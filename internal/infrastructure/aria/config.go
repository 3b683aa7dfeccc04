package aria

import (
	"errors"
	"strings"
)

// Config holds configuration for the Aria financing backend API
type Config struct {
	// BaseURL is the API root, e.g. https://api.anatod.ar/api
	BaseURL string
	// APIKey is sent in the x-api-key header
	APIKey string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// RequestsPerSecond throttles outbound calls; zero disables throttling
	RequestsPerSecond float64
	// Burst is the limiter's bucket size when throttling is enabled
	Burst int
	// Installments is the number of monthly installments per debt
	Installments int
	// OperatorUserID is the backend user the debts are registered under
	OperatorUserID int
	// DebtType and DebtCurrency are the backend's fixed codes for storefront purchases
	DebtType     string
	DebtCurrency string
}

const (
	// DefaultBaseURL is the production API endpoint
	DefaultBaseURL        = "https://api.anatod.ar/api"
	defaultTimeoutSeconds = 8
	defaultOperatorUserID = 374
	defaultDebtType       = "M"
	defaultDebtCurrency   = "ML"
)

// Errors for Aria configuration
var (
	ErrConfigMissingAPIKey = errors.New("aria: api key is required")
	ErrConfigInvalidRate   = errors.New("aria: requests per second cannot be negative")
)

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.RequestsPerSecond < 0 {
		return ErrConfigInvalidRate
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Installments <= 0 {
		c.Installments = 3
	}
	if c.OperatorUserID <= 0 {
		c.OperatorUserID = defaultOperatorUserID
	}
	if c.DebtType == "" {
		c.DebtType = defaultDebtType
	}
	if c.DebtCurrency == "" {
		c.DebtCurrency = defaultDebtCurrency
	}
	return nil
}
