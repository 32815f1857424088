package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opendesk/chat-core/internal/domain"
)

// Profile is what the user-directory collaborator knows about an
// externally-issued user id.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url"`
}

// Lookup resolves an external user id to a directory profile.
type Lookup interface {
	Lookup(ctx context.Context, tenantID, externalUserID string) (*Profile, error)
}

// Client calls the user-directory service over HTTP with exponential
// backoff on transient failures. A 404 is final, never retried.
type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
	return &Client{
		http:    &http.Client{Transport: tr, Timeout: timeout},
		baseURL: baseURL,
	}
}

func (c *Client) Lookup(ctx context.Context, tenantID, externalUserID string) (*Profile, error) {
	// Ids arrive from request bodies; escaping keeps a crafted id from
	// rewriting the request path.
	url := fmt.Sprintf("%s/users/%s?tenant_id=%s",
		c.baseURL, neturl.PathEscape(externalUserID), neturl.QueryEscape(tenantID))

	var profile *Profile
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(domain.ErrNotFound)
		case resp.StatusCode >= 500:
			return fmt.Errorf("directory returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("directory returned %d", resp.StatusCode))
		}

		var p Profile
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return backoff.Permanent(fmt.Errorf("decode directory response: %w", err))
		}
		profile = &p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 3 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return profile, nil
}
