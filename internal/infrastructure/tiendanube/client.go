// Package tiendanube is the REST adapter for the Tiendanube storefront.
package tiendanube

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

	"github.com/cobranzas/backend/internal/domain/storefront"
)

// maxResponseSize is the maximum allowed response size from the platform (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Client implements storefront.OrderGateway
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Tiendanube client with the given configuration
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   time.Duration(config.TimeoutSeconds) * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("tiendanube"),
	}, nil
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// ListOrders lists orders with the given status filter
func (c *Client) ListOrders(ctx context.Context, opts storefront.ListOptions) ([]storefront.Order, error) {
	status := opts.Status
	if status == "" {
		status = storefront.OrderStatusOpen
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", storefront.ErrRequestRejected, status)
	}
	perPage := opts.PerPage
	if perPage <= 0 || perPage > maxPerPage {
		perPage = c.config.PerPage
	}

	query := url.Values{}
	query.Set("status", string(status))
	query.Set("per_page", strconv.Itoa(perPage))

	body, err := c.do(ctx, http.MethodGet, "/orders", query, nil)
	if err != nil {
		return nil, err
	}

	var orders []apiOrder
	if err := decode(body, &orders); err != nil {
		return nil, err
	}
	out := make([]storefront.Order, 0, len(orders))
	for i := range orders {
		out = append(out, orders[i].toDomain())
	}
	return out, nil
}

// GetOrder fetches one order
func (c *Client) GetOrder(ctx context.Context, id int64) (*storefront.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders/"+formatID(id), nil, nil)
	if err != nil {
		return nil, err
	}
	var order apiOrder
	if err := decode(body, &order); err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, storefront.ErrOrderNotFound
	}
	o := order.toDomain()
	return &o, nil
}

// UpdateOrder sends the note and/or payment status in a single PUT.
// HTTP 422 is reported as storefront.ErrUpdateRejected.
func (c *Client) UpdateOrder(ctx context.Context, id int64, update storefront.OrderUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	payload, err := json.Marshal(newUpdateOrderRequest(update))
	if err != nil {
		return fmt.Errorf("tiendanube: failed to encode update: %w", err)
	}
	_, err = c.do(ctx, http.MethodPut, "/orders/"+formatID(id), nil, payload)
	return err
}

// CancelOrder cancels an order with the given reason
func (c *Client) CancelOrder(ctx context.Context, id int64, reason string) error {
	payload, err := json.Marshal(cancelOrderRequest{Reason: reason})
	if err != nil {
		return fmt.Errorf("tiendanube: failed to encode cancel: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/orders/"+formatID(id)+"/cancel", nil, payload)
	return err
}

// ---------------------------------------------------------------------------
// Product Operations
// ---------------------------------------------------------------------------

// ListProducts returns up to limit published products
func (c *Client) ListProducts(ctx context.Context, limit int) ([]storefront.Product, error) {
	if limit <= 0 || limit > maxPerPage {
		limit = c.config.PerPage
	}
	query := url.Values{}
	query.Set("published", "true")
	query.Set("per_page", strconv.Itoa(limit))

	body, err := c.do(ctx, http.MethodGet, "/products", query, nil)
	if err != nil {
		return nil, err
	}
	var products []apiProduct
	if err := decode(body, &products); err != nil {
		return nil, err
	}
	out := make([]storefront.Product, 0, len(products))
	for i := range products {
		out = append(out, products[i].toDomain())
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	endpoint := c.config.StoreURL() + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("tiendanube: failed to create request: %w", err)
	}
	req.Header.Set("Authentication", "bearer "+c.config.AccessToken)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Storefront unreachable", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", storefront.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", storefront.ErrUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	c.logger.Warn("Storefront request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", truncateBody(body)),
	)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, storefront.ErrOrderNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", storefront.ErrUpdateRejected, truncateBody(body))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", storefront.ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: HTTP %d: %s", storefront.ErrRequestRejected, resp.StatusCode, truncateBody(body))
	}
}

func decode(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", storefront.ErrInvalidResponse)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", storefront.ErrInvalidResponse, err)
	}
	return nil
}

func truncateBody(body []byte) []byte {
	const limit = 512
	if len(body) > limit {
		return body[:limit]
	}
	return body
}

// Ensure Client implements storefront.OrderGateway
var _ storefront.OrderGateway = (*Client)(nil)
