// ABOUTME: Background update checker polling a JSON release feed
// ABOUTME: Reports up-to-date/available/error status; never downloads or installs

package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/2389/grimoire/internal/config"
)

// Status states
const (
	StateUpToDate  = "up-to-date"
	StateAvailable = "available"
	StateError     = "error"
)

// Status is a snapshot of the last update check
type Status struct {
	State       string    `json:"state"`
	Version     string    `json:"version,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	PublishedAt string    `json:"published_at,omitempty"`
	Error       string    `json:"error,omitempty"`
	CheckedAt   time.Time `json:"checked_at,omitempty"`
}

// feedEntry is the JSON shape of the release feed
type feedEntry struct {
	Version string `json:"version"`
	Notes   string `json:"notes"`
	PubDate string `json:"pub_date"`
}

// Checker periodically polls the release feed and tracks the latest status.
// It only checks and reports; auto_download/auto_install are noted at startup
// but no binary is ever fetched.
type Checker struct {
	cfg     config.UpdaterConfig
	version string
	client  *http.Client
	logger  *slog.Logger

	mu     sync.Mutex
	status Status
}

// defaultCheckInterval backstops a zero-value interval so Run never hands
// time.NewTicker a non-positive duration.
const defaultCheckInterval = 6 * time.Hour

// New creates a checker for the given current version
func New(cfg config.UpdaterConfig, version string, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	return &Checker{
		cfg:     cfg,
		version: version,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With("component", "updater"),
		status:  Status{State: StateUpToDate},
	}
}

// Status returns a snapshot of the last check result
func (c *Checker) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Run checks once after the launch delay (when configured), then on every
// interval tick until the context is canceled. Returns nil when disabled.
func (c *Checker) Run(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.logger.Info("update checks disabled")
		return nil
	}

	c.logger.Info("update checker started",
		"feed_url", c.cfg.FeedURL,
		"check_interval", c.cfg.CheckInterval,
		"auto_download", c.cfg.AutoDownload,
		"auto_install", c.cfg.AutoInstall,
	)

	if c.cfg.CheckOnLaunch {
		select {
		case <-time.After(c.cfg.LaunchDelay):
			c.CheckOnce(ctx)
		case <-ctx.Done():
			return nil
		}
	}

	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CheckOnce(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// CheckOnce fetches the feed and updates the status snapshot
func (c *Checker) CheckOnce(ctx context.Context) {
	entry, err := c.fetchFeed(ctx)
	now := time.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warn("update check failed", "error", err)
		c.status = Status{State: StateError, Error: err.Error(), CheckedAt: now}
		return
	}

	if isNewer(entry.Version, c.version) {
		c.logger.Info("update available", "current", c.version, "latest", entry.Version)
		c.status = Status{
			State:       StateAvailable,
			Version:     entry.Version,
			Notes:       entry.Notes,
			PublishedAt: entry.PubDate,
			CheckedAt:   now,
		}
		return
	}

	c.status = Status{State: StateUpToDate, CheckedAt: now}
}

// fetchFeed retrieves and decodes the release feed
func (c *Checker) fetchFeed(ctx context.Context) (*feedEntry, error) {
	if c.cfg.FeedURL == "" {
		return nil, fmt.Errorf("no feed URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release feed returned status %d", resp.StatusCode)
	}

	var entry feedEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, fmt.Errorf("decoding release feed: %w", err)
	}
	if entry.Version == "" {
		return nil, fmt.Errorf("release feed has no version")
	}

	return &entry, nil
}

// isNewer reports whether latest is a higher version than current.
// A leading "v" is trimmed from either side before comparing.
func isNewer(latest, current string) bool {
	return compareVersions(strings.TrimPrefix(latest, "v"), strings.TrimPrefix(current, "v")) > 0
}

// compareVersions compares dotted versions component by component, numerically
// where both components parse as integers ("1.10.0" sorts above "1.9.0").
// Missing components count as zero, so "1.2" equals "1.2.0".
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := "0", "0"
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}

		ai, aerr := strconv.Atoi(av)
		bi, berr := strconv.Atoi(bv)
		if aerr == nil && berr == nil {
			if ai != bi {
				if ai > bi {
					return 1
				}
				return -1
			}
			continue
		}

		if av != bv {
			if av > bv {
				return 1
			}
			return -1
		}
	}
	return 0
}
