// Package sheets implements the HTTP client for the sheet relay service,
// which reads and writes spreadsheet data on behalf of the bot.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the sheet relay endpoint. The relay multiplexes read and
// write operations through its query string: action=read|write plus the
// target sheet_url.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a sheet relay client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("sheet relay base URL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid sheet relay base URL: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "sheets_client"),
	}, nil
}

type readResponse struct {
	Data [][]string `json:"data"`
}

// Read fetches the current contents of the sheet as rows of cells.
func (c *Client) Read(ctx context.Context, sheetURL string) ([][]string, error) {
	reqURL, err := c.buildURL("read", sheetURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet read request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheet read request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sheet read returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet response body: %w", err)
	}

	var parsed readResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse sheet read response: %w", err)
	}

	c.logger.DebugContext(ctx, "Sheet read completed", "rows", len(parsed.Data))
	return parsed.Data, nil
}

// Write replaces the sheet contents with the given rows. The relay treats
// any non-2xx status as failure; a failed write writes nothing.
func (c *Client) Write(ctx context.Context, sheetURL string, values [][]string) error {
	reqURL, err := c.buildURL("write", sheetURL)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode sheet values: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create sheet write request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheet write request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sheet write returned status %d", resp.StatusCode)
	}

	c.logger.InfoContext(ctx, "Sheet write completed", "rows", len(values))
	return nil
}

func (c *Client) buildURL(action, sheetURL string) (string, error) {
	if sheetURL == "" {
		return "", fmt.Errorf("sheet URL cannot be empty")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid sheet relay base URL: %w", err)
	}

	q := u.Query()
	q.Set("action", action)
	q.Set("sheet_url", sheetURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
