package registry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/eventpass/backend/internal/config"
	"github.com/eventpass/backend/internal/domain"

	"github.com/go-resty/resty/v2"
)

// Client talks to the external distributor registry. A verified email is
// looked up there to attach the distributor's canonical identity to the
// session. The registry is best-effort for the registration flow: callers
// degrade to an empty profile when it is down.
type Client struct {
	cfg  config.RegistryConfig
	http *resty.Client
}

func NewClient(cfg config.RegistryConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetHeader("X-Api-Key", cfg.APIKey),
	}
}

type lookupResponse struct {
	Found     bool   `json:"found"`
	UnicityID string `json:"unicityId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Verified  bool   `json:"verified"`
}

// LookupByEmail fetches the registry profile for an email. A registry miss
// is domain.ErrNotFound; transport and server failures are returned as-is.
func (c *Client) LookupByEmail(ctx context.Context, email string) (*domain.VerifiedProfile, error) {
	const op = "registry.Client.LookupByEmail"

	var out lookupResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("email", email).
		SetResult(&out).
		Get("/v1/distributors/lookup")
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s: unexpected status code: %d", op, resp.StatusCode())
	}
	if !out.Found {
		return nil, domain.ErrNotFound
	}

	return &domain.VerifiedProfile{
		UnicityID:                  out.UnicityID,
		Email:                      email,
		FirstName:                  out.FirstName,
		LastName:                   out.LastName,
		Phone:                      out.Phone,
		VerifiedByExternalRegistry: out.Verified,
	}, nil
}
