// Package profile talks to the external user-profile service. Every call
// degrades to a safe default on failure; the service is never on the critical
// path of persistence or fan-out.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ripple/internal/observability"
)

// UnknownUsername is the placeholder shown when the profile service cannot
// resolve a user.
const UnknownUsername = "Unknown User"

// PrivacySettings are the per-user flags affecting presence and read receipts.
// Absent flags default to visible/receipts-on.
type PrivacySettings struct {
	ShowOnlineStatus bool `json:"showOnlineStatus"`
	ShowReadReceipts bool `json:"showReadReceipts"`
}

// DefaultPrivacy returns the permissive defaults used when the profile
// service is unreachable or has no record for the user.
func DefaultPrivacy() PrivacySettings {
	return PrivacySettings{ShowOnlineStatus: true, ShowReadReceipts: true}
}

// PublicProfile is the subset of the profile service's public user record
// consumed by this service.
type PublicProfile struct {
	ID       string
	Username string
	Privacy  PrivacySettings
}

// Client is an HTTP client for the profile service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient returns a profile client with the given base URL and per-call timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  observability.Component("profile"),
	}
}

// wire shape: pointer bools so absent flags keep their permissive default.
type publicProfileResponse struct {
	ID              string `json:"_id"`
	Username        string `json:"username"`
	PrivacySettings struct {
		ShowOnlineStatus *bool `json:"showOnlineStatus"`
		ShowReadReceipts *bool `json:"showReadReceipts"`
	} `json:"privacySettings"`
}

// PublicProfile fetches the public record for a user.
func (c *Client) PublicProfile(ctx context.Context, userID string) (*PublicProfile, error) {
	endpoint := fmt.Sprintf("%s/user/%s/public", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile service returned status %d", resp.StatusCode)
	}

	var wire publicProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, err
	}

	privacy := DefaultPrivacy()
	if wire.PrivacySettings.ShowOnlineStatus != nil {
		privacy.ShowOnlineStatus = *wire.PrivacySettings.ShowOnlineStatus
	}
	if wire.PrivacySettings.ShowReadReceipts != nil {
		privacy.ShowReadReceipts = *wire.PrivacySettings.ShowReadReceipts
	}

	return &PublicProfile{ID: wire.ID, Username: wire.Username, Privacy: privacy}, nil
}

// Privacy returns the user's privacy flags, degrading to permissive defaults
// when the profile service fails.
func (c *Client) Privacy(ctx context.Context, userID string) PrivacySettings {
	p, err := c.PublicProfile(ctx, userID)
	if err != nil {
		c.logger.Warn("privacy lookup failed, using defaults",
			slog.String("user_id", userID), slog.Any("error", err))
		observability.CollaboratorFailures.WithLabelValues("profile").Inc()
		return DefaultPrivacy()
	}
	return p.Privacy
}

// Username resolves the user's display name, with a placeholder on failure.
func (c *Client) Username(ctx context.Context, userID string) string {
	p, err := c.PublicProfile(ctx, userID)
	if err != nil || p.Username == "" {
		if err != nil {
			observability.CollaboratorFailures.WithLabelValues("profile").Inc()
		}
		return UnknownUsername
	}
	return p.Username
}

// UpdateLastSeen pings the profile service that the user was just active.
// Fire-and-forget: failures are logged and ignored.
func (c *Client) UpdateLastSeen(userID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
		defer cancel()

		body := strings.NewReader(fmt.Sprintf(`{"userId":%q}`, userID))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/update-last-seen", body)
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("last-seen update failed", slog.String("user_id", userID), slog.Any("error", err))
			observability.CollaboratorFailures.WithLabelValues("profile").Inc()
			return
		}
		_ = resp.Body.Close()
	}()
}
