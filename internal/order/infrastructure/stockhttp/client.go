package stockhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultTimeout = 2 * time.Second

// Client queries the stock service for SKU availability. Transport
// errors, timeouts and non-200 answers surface as errors so the circuit
// breaker counts them as failures; "not in stock" is a successful answer.
type Client struct {
	log        *slog.Logger
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewClient(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		log:        log,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("stock-client"),
	}
}

type availability struct {
	SKUCode   string `json:"sku_code"`
	Available bool   `json:"available"`
}

// CheckStock returns the skus that cannot be promised. A SKU missing
// from the response counts as unavailable.
func (c *Client) CheckStock(ctx context.Context, skus []string) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "CheckStock")
	defer span.End()

	q := url.Values{}
	for _, sku := range skus {
		q.Add("sku", sku)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stock?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build stock request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call stock service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stock service returned status %d", resp.StatusCode)
	}

	var results []availability
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode stock response: %w", err)
	}

	available := make(map[string]bool, len(results))
	for _, res := range results {
		available[res.SKUCode] = res.Available
	}

	var unavailable []string
	for _, sku := range skus {
		if !available[sku] {
			unavailable = append(unavailable, sku)
		}
	}
	return unavailable, nil
}
