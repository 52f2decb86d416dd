// Package zendesk implements the ticketing-service boundary against the
// Zendesk REST API using HTTP Basic "email/token" authentication.
package zendesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/elajah-datadog/dogflare/internal/config"
	"github.com/elajah-datadog/dogflare/internal/core"
)

// statusBatchSize is the fixed request size for show_many status lookups.
const statusBatchSize = 100

// Client talks to one Zendesk subdomain. It implements both
// core.TicketingClient and core.Fetcher (attachment content URLs require the
// same credentials as the API).
type Client struct {
	baseURL  string
	email    string
	apiToken string
	http     *http.Client
}

var (
	_ core.TicketingClient = (*Client)(nil)
	_ core.Fetcher         = (*Client)(nil)
)

// NewClient creates a Client from configuration.
func NewClient(cfg config.ZendeskConfig) (*Client, error) {
	if cfg.Subdomain == "" {
		return nil, fmt.Errorf("zendesk subdomain not configured")
	}
	if cfg.Email == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("zendesk credentials not configured")
	}
	return &Client{
		baseURL:  fmt.Sprintf("https://%s.zendesk.com/api/v2", cfg.Subdomain),
		email:    cfg.Email,
		apiToken: cfg.APIToken,
		http:     &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// SearchAssigneeID resolves a user email to the service-side user id.
func (c *Client) SearchAssigneeID(ctx context.Context, email string) (string, bool, error) {
	var payload struct {
		Users []struct {
			ID int64 `json:"id"`
		} `json:"users"`
	}

	u := c.baseURL + "/users/search.json?query=" + url.QueryEscape(email)
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return "", false, fmt.Errorf("searching user %s: %w", email, err)
	}
	if len(payload.Users) == 0 {
		return "", false, nil
	}
	return strconv.FormatInt(payload.Users[0].ID, 10), true, nil
}

// ListOpenTicketIDs returns the assignee's tickets that are not yet solved
// or closed; the service-side query excludes those.
func (c *Client) ListOpenTicketIDs(ctx context.Context, assigneeID string) ([]string, error) {
	query := fmt.Sprintf("type:ticket assignee:%s status<solved", assigneeID)
	next := c.baseURL + "/search.json?query=" + url.QueryEscape(query)

	var ids []string
	for next != "" {
		var payload struct {
			Results []struct {
				ID int64 `json:"id"`
			} `json:"results"`
			NextPage string `json:"next_page"`
		}
		if err := c.getJSON(ctx, next, &payload); err != nil {
			return nil, fmt.Errorf("searching tickets for assignee %s: %w", assigneeID, err)
		}
		for _, r := range payload.Results {
			ids = append(ids, strconv.FormatInt(r.ID, 10))
		}
		next = payload.NextPage
	}
	return ids, nil
}

// ListAttachments walks a ticket's comments and returns its attachments in
// comment order. File names recurring within this one result get a "(n)"
// counter suffix so they never collide on disk.
func (c *Client) ListAttachments(ctx context.Context, ticketID string) ([]core.AttachmentMeta, error) {
	next := fmt.Sprintf("%s/tickets/%s/comments.json", c.baseURL, url.PathEscape(ticketID))

	var metas []core.AttachmentMeta
	seen := make(map[string]int)

	for next != "" {
		var payload struct {
			Comments []struct {
				CreatedAt   time.Time `json:"created_at"`
				Attachments []struct {
					ID         int64  `json:"id"`
					FileName   string `json:"file_name"`
					ContentURL string `json:"content_url"`
				} `json:"attachments"`
			} `json:"comments"`
			NextPage string `json:"next_page"`
		}
		if err := c.getJSON(ctx, next, &payload); err != nil {
			return nil, fmt.Errorf("listing comments for ticket %s: %w", ticketID, err)
		}
		for _, comment := range payload.Comments {
			for _, a := range comment.Attachments {
				metas = append(metas, core.AttachmentMeta{
					ID:        strconv.FormatInt(a.ID, 10),
					URL:       a.ContentURL,
					FileName:  dedupeFileName(a.FileName, seen),
					CreatedAt: comment.CreatedAt,
				})
			}
		}
		next = payload.NextPage
	}
	return metas, nil
}

// FetchTicketStatuses looks up current statuses, batched at the fixed
// request size, concatenating results in request order.
func (c *Client) FetchTicketStatuses(ctx context.Context, ticketIDs []string) ([]core.TicketStatus, error) {
	var statuses []core.TicketStatus

	for start := 0; start < len(ticketIDs); start += statusBatchSize {
		end := min(start+statusBatchSize, len(ticketIDs))
		batch := ticketIDs[start:end]

		var payload struct {
			Tickets []struct {
				ID     int64  `json:"id"`
				Status string `json:"status"`
			} `json:"tickets"`
		}
		u := c.baseURL + "/tickets/show_many.json?ids=" + url.QueryEscape(strings.Join(batch, ","))
		if err := c.getJSON(ctx, u, &payload); err != nil {
			return nil, fmt.Errorf("fetching statuses: %w", err)
		}
		for _, t := range payload.Tickets {
			statuses = append(statuses, core.TicketStatus{
				ID:     strconv.FormatInt(t.ID, 10),
				Status: t.Status,
			})
		}
	}
	return statuses, nil
}

// Fetch opens an authenticated GET to an attachment content URL and returns
// the body stream. Any non-2xx status is an error.
func (c *Client) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// get performs an authenticated GET and rejects non-2xx responses.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(c.email+"/token", c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, rawURL)
	}
	return resp, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// dedupeFileName returns name unchanged on its first occurrence and
// "name(n)" (before the extension) on repeats, where n is the occurrence
// count. seen tracks occurrences by original name.
func dedupeFileName(name string, seen map[string]int) string {
	seen[name]++
	n := seen[name]
	if n == 1 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s(%d)%s", strings.TrimSuffix(name, ext), n, ext)
}
