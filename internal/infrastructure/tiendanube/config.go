package tiendanube

import (
	"errors"
	"strings"
)

// Config holds configuration for the Tiendanube storefront API
type Config struct {
	// StoreID is the numeric store identifier embedded in every URL
	StoreID string
	// AccessToken is sent as "Authentication: bearer <token>"
	AccessToken string
	// APIBaseURL is the API root without the store ID
	APIBaseURL string
	// UserAgent is required by the platform to identify the app
	UserAgent string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// PerPage is the default page size for order listings
	PerPage int
}

const (
	// ProductionAPIURL is the production API endpoint
	ProductionAPIURL      = "https://api.tiendanube.com/v1"
	defaultUserAgent      = "RobotWeb (24705)"
	defaultTimeoutSeconds = 5
	defaultPerPage        = 50
	maxPerPage            = 200
)

// Errors for Tiendanube configuration
var (
	ErrConfigMissingStoreID     = errors.New("tiendanube: store id is required")
	ErrConfigMissingAccessToken = errors.New("tiendanube: access token is required")
)

// NewConfig creates a configuration with defaults
func NewConfig(storeID, accessToken string) *Config {
	return &Config{
		StoreID:        storeID,
		AccessToken:    accessToken,
		APIBaseURL:     ProductionAPIURL,
		UserAgent:      defaultUserAgent,
		TimeoutSeconds: defaultTimeoutSeconds,
		PerPage:        defaultPerPage,
	}
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StoreID) == "" {
		return ErrConfigMissingStoreID
	}
	if c.AccessToken == "" {
		return ErrConfigMissingAccessToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = ProductionAPIURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.PerPage <= 0 {
		c.PerPage = defaultPerPage
	}
	if c.PerPage > maxPerPage {
		c.PerPage = maxPerPage
	}
	return nil
}

// StoreURL returns the base URL for the configured store
func (c *Config) StoreURL() string {
	return c.APIBaseURL + "/" + strings.TrimSpace(c.StoreID)
}
