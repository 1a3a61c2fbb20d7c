package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const latestReportTTL = 45 * 24 * time.Hour

// ReportCache keeps the most recent rendered report per site in Redis so the
// ops API can serve it without touching Postgres.
type ReportCache struct {
	client *redis.Client
}

// NewReportCache constructs a report cache.
func NewReportCache(client *redis.Client) *ReportCache {
	return &ReportCache{client: client}
}

func latestReportKey(siteID string) string {
	return fmt.Sprintf("patchwin:last_report:%s", siteID)
}

// SetLatestReport stores the rendered text report for the site.
func (c *ReportCache) SetLatestReport(ctx context.Context, siteID, body string) error {
	if err := c.client.Set(ctx, latestReportKey(siteID), body, latestReportTTL).Err(); err != nil {
		return fmt.Errorf("cache latest report: %w", err)
	}
	return nil
}

// GetLatestReport returns the cached report, or redis.Nil when absent.
func (c *ReportCache) GetLatestReport(ctx context.Context, siteID string) (string, error) {
	body, err := c.client.Get(ctx, latestReportKey(siteID)).Result()
	if err != nil {
		return "", err
	}
	return body, nil
}
