// internal/provider/client.go
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/sirupsen/logrus"
)

// Client is the contract of the cloud tenant-management API consumed by
// the portal. The HTTP implementation below is the only one used in
// production; tests substitute fakes.
type Client interface {
	CreateTenant(ctx context.Context, spec TenantSpec) (string, error)
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	CheckLoginAvailable(ctx context.Context, login string) (bool, error)
	CreateUser(ctx context.Context, spec UserSpec) (string, error)
	SendActivationEmail(ctx context.Context, userID string) error
	EnableApplications(ctx context.Context, tenantID string, applicationIDs []string) error
	SetOfferingItems(ctx context.Context, tenantID string, items []OfferingItem) error
	GetOfferingItems(ctx context.Context, tenantID, edition string) ([]OfferingItem, error)
	SetAccessPolicies(ctx context.Context, userID string, policies []AccessPolicy) error
	GetUsages(ctx context.Context, tenantIDs, usageNames, editions []string) ([]Usage, error)
}

type httpClient struct {
	baseURL    string
	httpc      *http.Client
	tokens     TokenSource
	maxRetries uint
}

// NewClient builds the HTTP client. The timeout applies per request so a
// slow provider surfaces ErrUnavailable instead of hanging the caller.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) Client {
	return &httpClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpc:      &http.Client{Timeout: timeout},
		tokens:     tokens,
		maxRetries: 3,
	}
}

func (c *httpClient) CreateTenant(ctx context.Context, spec TenantSpec) (string, error) {
	var out Tenant
	if err := c.do(ctx, http.MethodPost, "/tenants", nil, spec, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *httpClient) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	var out Tenant
	if err := c.get(ctx, "/tenants/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) CheckLoginAvailable(ctx context.Context, login string) (bool, error) {
	query := url.Values{}
	query.Set("login", login)

	var out struct {
		Available bool `json:"available"`
	}
	if err := c.get(ctx, "/users/check-login", query, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

func (c *httpClient) CreateUser(ctx context.Context, spec UserSpec) (string, error) {
	var out User
	if err := c.do(ctx, http.MethodPost, "/users", nil, spec, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *httpClient) SendActivationEmail(ctx context.Context, userID string) error {
	path := "/users/" + url.PathEscape(userID) + "/send-activation-email"
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

func (c *httpClient) EnableApplications(ctx context.Context, tenantID string, applicationIDs []string) error {
	path := "/tenants/" + url.PathEscape(tenantID) + "/applications"
	body := map[string]interface{}{"application_ids": applicationIDs}
	return c.do(ctx, http.MethodPut, path, nil, body, nil)
}

func (c *httpClient) SetOfferingItems(ctx context.Context, tenantID string, items []OfferingItem) error {
	path := "/tenants/" + url.PathEscape(tenantID) + "/offering-items"
	body := map[string]interface{}{"offering_items": items}
	return c.do(ctx, http.MethodPut, path, nil, body, nil)
}

func (c *httpClient) GetOfferingItems(ctx context.Context, tenantID, edition string) ([]OfferingItem, error) {
	query := url.Values{}
	if edition != "" {
		query.Set("edition", edition)
	}

	var out struct {
		Items []OfferingItem `json:"items"`
	}
	path := "/tenants/" + url.PathEscape(tenantID) + "/offering-items"
	if err := c.get(ctx, path, query, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *httpClient) SetAccessPolicies(ctx context.Context, userID string, policies []AccessPolicy) error {
	path := "/users/" + url.PathEscape(userID) + "/access-policies"
	body := map[string]interface{}{"policies": policies}
	return c.do(ctx, http.MethodPut, path, nil, body, nil)
}

func (c *httpClient) GetUsages(ctx context.Context, tenantIDs, usageNames, editions []string) ([]Usage, error) {
	query := url.Values{}
	query.Set("tenants", strings.Join(tenantIDs, ","))
	query.Set("names", strings.Join(usageNames, ","))
	query.Set("editions", strings.Join(editions, ","))

	var out struct {
		Items []Usage `json:"items"`
	}
	if err := c.get(ctx, "/usages", query, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// get wraps do with bounded retries. Only reads are retried: mutating
// calls have no idempotency key upstream, so a blind retry could create
// duplicate tenants or users.
func (c *httpClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, path, query, nil, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.maxRetries),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrUnavailable)
		}),
	)
}

func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		logrus.WithError(err).WithField("path", path).Warn("Provider request failed")
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		var apiBody struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		message := strings.TrimSpace(string(raw))
		if err := json.Unmarshal(raw, &apiBody); err == nil && apiBody.Error.Message != "" {
			message = apiBody.Error.Message
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding %s %s response: %v", ErrUnavailable, method, path, err)
		}
	}

	return nil
}
