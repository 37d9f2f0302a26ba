package rates_api_client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
}

func (c *Client) doRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// FetchRates забирает официальный и параллельный курс
func (c *Client) FetchRates(ctx context.Context) (domain.Rates, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	clientLogger := logger.WithFields(port.Fields{
		"component": "RatesApiClient",
		"method":    "FetchRates",
	})

	url := c.baseURL + "/rates"
	clientLogger.Debug("Sending request to rates service", port.Fields{"url": url})

	resp, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		clientLogger.Error("Failed to perform request to rates service", err, nil)
		return domain.Rates{}, fmt.Errorf("failed to perform rates request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("rates service returned non-success status code %d: %s", resp.StatusCode, string(bodyBytes))
		clientLogger.Error("Received error response from rates service", err, port.Fields{"status_code": resp.StatusCode})
		return domain.Rates{}, err
	}

	var dto RatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		clientLogger.Error("Failed to decode response from rates service", err, nil)
		return domain.Rates{}, fmt.Errorf("failed to decode rates response: %w", err)
	}

	rates := domain.Rates{
		Official: dto.Official,
		Parallel: dto.Parallel,
		AsOf:     c.now().UTC(),
		Source:   dto.Source,
	}
	if dto.AsOf != nil {
		rates.AsOf = dto.AsOf.UTC()
	}
	if rates.Source == "" {
		rates.Source = "rates-api"
	}

	clientLogger.Debug("Rates received", port.Fields{
		"official": rates.Official.String(),
		"parallel": rates.Parallel.String(),
	})
	return rates, nil
}
