package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	productionAPIBase = "https://api.openprovider.eu/v1beta"
	sandboxAPIBase    = "http://api.sandbox.openprovider.nl:8480/v1beta"
	requestTimeout    = 10 * time.Second
	tokenTTL          = 24 * time.Hour
)

var (
	// ErrNotFound is returned when a domain is not found at the registrar
	ErrNotFound = errors.New("domain not found")
)

// Registrar domain statuses
const (
	StatusActive    = "ACT"
	StatusRequested = "REQ"
	StatusScheduled = "SCH"
	StatusFailed    = "FAI"
	StatusDeleted   = "DEL"
)

// Client talks to the OpenProvider API
type Client struct {
	username string
	password string
	handle   string
	baseURL  string
	client   *http.Client

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
	now            func() time.Time
}

// NewClient creates a new OpenProvider client. Sandbox selects the
// sandbox API endpoint.
func NewClient(username, password, handle string, sandbox bool) *Client {
	baseURL := productionAPIBase
	if sandbox {
		baseURL = sandboxAPIBase
	}
	return &Client{
		username: username,
		password: password,
		handle:   handle,
		baseURL:  baseURL,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		now: time.Now,
	}
}

// apiResponse represents the OpenProvider response envelope
type apiResponse struct {
	Code int             `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

type authResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

// getToken returns a cached bearer token, logging in when expired.
// Concurrent callers share a single login request.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiresAt) {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registrar auth failed: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if auth.Data.Token == "" {
		return "", fmt.Errorf("registrar auth returned empty token")
	}

	c.token = auth.Data.Token
	c.tokenExpiresAt = c.now().Add(tokenTTL)
	return c.token, nil
}

// do sends an authenticated request and decodes the response envelope
func (c *Client) do(ctx context.Context, method, path string, payload any) (*apiResponse, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if apiResp.Desc != "" {
			return nil, fmt.Errorf("registrar API error: %s", apiResp.Desc)
		}
		return nil, fmt.Errorf("registrar request failed: %d", resp.StatusCode)
	}

	return &apiResp, nil
}

// DomainCheck is the availability and price of one candidate domain
type DomainCheck struct {
	Domain   string  `json:"domain"`
	Status   string  `json:"status"`
	PriceEUR float64 `json:"price"`
	Currency string  `json:"currency"`
	HasPrice bool    `json:"hasPrice"`
}

// CheckDomains checks availability and pricing of a name across extensions
func (c *Client) CheckDomains(ctx context.Context, name string, extensions []string) ([]DomainCheck, error) {
	type domainRef struct {
		Name      string `json:"name"`
		Extension string `json:"extension"`
	}

	domains := make([]domainRef, 0, len(extensions))
	for _, ext := range extensions {
		domains = append(domains, domainRef{Name: name, Extension: ext})
	}

	resp, err := c.do(ctx, "POST", "/domains/check", map[string]any{
		"domains":    domains,
		"with_price": true,
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		Results []struct {
			Domain string `json:"domain"`
			Status string `json:"status"`
			Price  *struct {
				Product struct {
					Price    float64 `json:"price"`
					Currency string  `json:"currency"`
				} `json:"product"`
			} `json:"price"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}

	results := make([]DomainCheck, 0, len(data.Results))
	for _, r := range data.Results {
		check := DomainCheck{Domain: r.Domain, Status: r.Status}
		if r.Price != nil {
			check.PriceEUR = r.Price.Product.Price
			check.Currency = r.Price.Product.Currency
			check.HasPrice = true
		}
		results = append(results, check)
	}
	return results, nil
}

// CheckDomain checks a single fully qualified domain name
func (c *Client) CheckDomain(ctx context.Context, name, extension string) (*DomainCheck, error) {
	results, err := c.CheckDomains(ctx, name, []string{extension})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return &results[0], nil
}

// domainOrder is the shared payload for register and transfer requests
func (c *Client) domainOrder(name, extension string) map[string]any {
	return map[string]any{
		"domain":         map[string]string{"name": name, "extension": extension},
		"owner_handle":   c.handle,
		"admin_handle":   c.handle,
		"tech_handle":    c.handle,
		"billing_handle": c.handle,
		"ns_group":       "dns-openprovider",
		"autorenew":      "default",
	}
}

type orderResult struct {
	ID int64 `json:"id"`
}

// RegisterDomain registers a domain for one year and returns the registrar ID
func (c *Client) RegisterDomain(ctx context.Context, name, extension string) (int64, error) {
	payload := c.domainOrder(name, extension)
	payload["period"] = 1

	resp, err := c.do(ctx, "POST", "/domains", payload)
	if err != nil {
		return 0, err
	}

	var result orderResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return 0, fmt.Errorf("failed to parse result: %w", err)
	}
	return result.ID, nil
}

// TransferDomain starts an inbound transfer and returns the registrar ID
func (c *Client) TransferDomain(ctx context.Context, name, extension, authCode string) (int64, error) {
	payload := c.domainOrder(name, extension)
	payload["auth_code"] = authCode

	resp, err := c.do(ctx, "POST", "/domains/transfer", payload)
	if err != nil {
		return 0, err
	}

	var result orderResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return 0, fmt.Errorf("failed to parse result: %w", err)
	}
	return result.ID, nil
}

// RenewDomain renews a domain for one year
func (c *Client) RenewDomain(ctx context.Context, registrarID int64) error {
	_, err := c.do(ctx, "POST", fmt.Sprintf("/domains/%d/renew", registrarID), map[string]int{
		"period": 1,
	})
	return err
}

// DomainState is the registrar-side state of a domain
type DomainState struct {
	Status    string
	ExpiresAt *time.Time
}

// DomainStatus fetches the registrar status of a domain by registrar ID
func (c *Client) DomainStatus(ctx context.Context, registrarID int64) (*DomainState, error) {
	resp, err := c.do(ctx, "GET", fmt.Sprintf("/domains/%d", registrarID), nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Status         string `json:"status"`
		ExpirationDate string `json:"expiration_date"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}

	state := &DomainState{Status: data.Status}
	if data.ExpirationDate != "" {
		if t, err := parseRegistrarTime(data.ExpirationDate); err == nil {
			state.ExpiresAt = &t
		}
	}
	return state, nil
}

func parseRegistrarTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", s)
}
