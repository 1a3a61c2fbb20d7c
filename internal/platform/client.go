package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/opsgrid/patchwin-api/internal/models"
	"github.com/opsgrid/patchwin-api/pkg/config"
)

// Client talks to the systems-management platform's REST API. It exposes the
// narrow surface the realignment needs: collection discovery, reading a
// collection's single maintenance window and applying a non-recurring
// service window.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a platform client from config.
func NewClient(cfg config.PlatformConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.APIToken,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListCollections returns collections on the site whose names match the
// wildcard pattern, in the order the platform reports them.
func (c *Client) ListCollections(ctx context.Context, siteID, pattern string) ([]models.Collection, error) {
	endpoint := fmt.Sprintf("%s/sites/%s/collections?name=%s", c.baseURL, url.PathEscape(siteID), url.QueryEscape(pattern))
	var payload struct {
		Collections []models.Collection `json:"collections"`
	}
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return payload.Collections, nil
}

// GetMaintenanceWindow reads the collection's maintenance window.
func (c *Client) GetMaintenanceWindow(ctx context.Context, collectionID string) (*models.MaintenanceWindow, error) {
	endpoint := fmt.Sprintf("%s/collections/%s/maintenance-window", c.baseURL, url.PathEscape(collectionID))
	var window models.MaintenanceWindow
	if err := c.get(ctx, endpoint, &window); err != nil {
		return nil, fmt.Errorf("get maintenance window: %w", err)
	}
	return &window, nil
}

// ApplyServiceWindow replaces the named window's schedule with a single
// non-recurring occurrence.
func (c *Client) ApplyServiceWindow(ctx context.Context, collectionID, windowName string, window models.ServiceWindow) error {
	endpoint := fmt.Sprintf("%s/collections/%s/maintenance-window", c.baseURL, url.PathEscape(collectionID))
	body, err := json.Marshal(struct {
		Name      string    `json:"name"`
		Start     time.Time `json:"start"`
		End       time.Time `json:"end"`
		Recurring bool      `json:"recurring"`
	}{Name: windowName, Start: window.Start, End: window.End, Recurring: false})
	if err != nil {
		return fmt.Errorf("encode service window: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apply service window: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("apply service window: %s", responseError(resp))
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", responseError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// responseError carries the platform's error text into the per-collection
// record so the report shows what the remote side rejected.
func responseError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := bytes.TrimSpace(body)
	if len(text) == 0 {
		return fmt.Sprintf("platform returned status %d", resp.StatusCode)
	}
	return fmt.Sprintf("platform returned status %d: %s", resp.StatusCode, text)
}
