// Package aria is the HTTP adapter for the Aria financing backend.
package aria

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cobranzas/backend/internal/domain/financing"
)

// maxResponseSize is the maximum allowed response size from the backend (5MB)
const maxResponseSize = 5 * 1024 * 1024

// Client implements financing.CustomerDirectory and financing.DebtLedger
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a new Aria client with the given configuration
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   time.Duration(config.TimeoutSeconds) * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("aria"),
	}
	if config.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Customer Operations
// ---------------------------------------------------------------------------

// LookupByID fetches a single customer. An empty answer or HTTP 404 is ErrCustomerNotFound.
func (c *Client) LookupByID(ctx context.Context, id int64) (*financing.Customer, error) {
	records, err := c.getRecords(ctx, "/cliente/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, err
	}
	customers := toCustomers(records)
	if len(customers) == 0 {
		return nil, financing.ErrCustomerNotFound
	}
	return &customers[0], nil
}

// Search runs the backend's free-text customer search
func (c *Client) Search(ctx context.Context, query string) ([]financing.Customer, error) {
	return c.search(ctx, "q", query)
}

// SearchByIdentification searches customers by identification number
func (c *Client) SearchByIdentification(ctx context.Context, identification string) ([]financing.Customer, error) {
	return c.search(ctx, "ident", identification)
}

func (c *Client) search(ctx context.Context, param, value string) ([]financing.Customer, error) {
	records, err := c.getRecords(ctx, "/clientes", url.Values{param: []string{value}})
	if err != nil {
		return nil, err
	}
	return toCustomers(records), nil
}

func (c *Client) getRecords(ctx context.Context, path string, query url.Values) ([]record, error) {
	body, status, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if err := statusError(status); err != nil {
		c.logger.Warn("Aria request failed",
			zap.String("path", path),
			zap.Int("status", status),
		)
		return nil, err
	}
	return normalizeEnvelope(body)
}

// ---------------------------------------------------------------------------
// Debt Operations
// ---------------------------------------------------------------------------

// debtPayload is the body of POST /adicional
type debtPayload struct {
	CustomerID   int64  `json:"adicional_cliente"`
	Description  string `json:"adicional_descripcion"`
	Type         string `json:"adicional_tipo"`
	Currency     string `json:"adicional_moneda"`
	Amount       string `json:"adicional_importe"`
	Months       string `json:"adicional_meses"`
	ExchangeRate string `json:"adicional_cotizacion"`
	UserID       int    `json:"adicional_usuario"`
}

// CreateInstallmentDebt registers the debt. Only HTTP 200 and 201 count as success.
func (c *Client) CreateInstallmentDebt(ctx context.Context, debt *financing.InstallmentDebt) error {
	if debt == nil {
		return fmt.Errorf("%w: nil debt", financing.ErrInvalidDebt)
	}
	installments := debt.Installments
	if installments <= 0 {
		installments = c.config.Installments
		debt.Installments = installments
	}

	payload := debtPayload{
		CustomerID:   debt.CustomerID,
		Description:  financing.TruncateDescription(debt.Description),
		Type:         c.config.DebtType,
		Currency:     c.config.DebtCurrency,
		Amount:       debt.InstallmentAmount().StringFixed(2),
		Months:       strconv.Itoa(installments),
		ExchangeRate: "0",
		UserID:       c.config.OperatorUserID,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("aria: failed to encode debt: %w", err)
	}

	body, status, err := c.doRequest(ctx, http.MethodPost, "/adicional", nil, data)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		c.logger.Warn("Aria rejected installment debt",
			zap.Int64("customer_id", debt.CustomerID),
			zap.Int("status", status),
			zap.ByteString("body", truncateBody(body)),
		)
		if err := statusError(status); err != nil {
			return fmt.Errorf("%w: %s", err, truncateBody(body))
		}
		return fmt.Errorf("%w: HTTP %d", financing.ErrBackendRejected, status)
	}

	c.logger.Info("Installment debt created",
		zap.Int64("customer_id", debt.CustomerID),
		zap.String("total", debt.Total.StringFixed(2)),
		zap.Int("installments", installments),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// doRequest sends one request. Transport failures and timeouts are
// ErrBackendUnavailable; any HTTP answer is returned with its status.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", financing.ErrBackendUnavailable, err)
		}
	}

	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("aria: failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Aria unreachable", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, 0, fmt.Errorf("%w: %v", financing.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: failed to read response: %v", financing.ErrBackendUnavailable, err)
	}
	return body, resp.StatusCode, nil
}

// statusError maps a non-2xx status to the directory's error taxonomy
func statusError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return financing.ErrCustomerNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", financing.ErrBackendUnauthorized, status)
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d", financing.ErrBackendUnavailable, status)
	default:
		return fmt.Errorf("%w: HTTP %d", financing.ErrBackendRejected, status)
	}
}

func truncateBody(body []byte) []byte {
	const limit = 512
	if len(body) > limit {
		return body[:limit]
	}
	return body
}

// Ensure Client implements the financing ports
var (
	_ financing.CustomerDirectory = (*Client)(nil)
	_ financing.DebtLedger        = (*Client)(nil)
)
