package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultAccountsBase = "https://accounts.zoho.com"
	defaultMailBase     = "https://mail.zoho.com"
	requestTimeout      = 10 * time.Second
)

// Client provisions mailboxes through the Zoho Mail organization API
type Client struct {
	clientID     string
	clientSecret string
	refreshToken string
	orgID        string

	accountsBase string
	mailBase     string
	client       *http.Client

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
	now            func() time.Time
}

// NewClient creates a new Zoho Mail client
func NewClient(clientID, clientSecret, refreshToken, orgID string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		orgID:        orgID,
		accountsBase: defaultAccountsBase,
		mailBase:     defaultMailBase,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		now: time.Now,
	}
}

// getAccessToken exchanges the refresh token for an access token, cached
// until 60 seconds before expiry.
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiresAt) {
		return c.token, nil
	}

	params := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {c.refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.accountsBase+"/oauth/v2/token?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("zoho token refresh failed: %d", resp.StatusCode)
	}

	var data struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("zoho token refresh returned empty token")
	}

	c.token = data.AccessToken
	c.tokenExpiresAt = c.now().Add(time.Duration(data.ExpiresIn-60) * time.Second)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	token, err := c.getAccessToken(ctx)
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

	req, err := http.NewRequestWithContext(ctx, method, c.mailBase+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Content-Type", "application/json")

	return c.client.Do(req)
}

// MailAccount is a provisioned mailbox
type MailAccount struct {
	ZUID    string `json:"zuid"`
	Address string `json:"primaryEmailAddress"`
}

// CreateAccount provisions a mailbox. The display name defaults to the
// local part of the address.
func (c *Client) CreateAccount(ctx context.Context, address, password, displayName string) (*MailAccount, error) {
	if displayName == "" {
		displayName = strings.SplitN(address, "@", 2)[0]
	}

	resp, err := c.do(ctx, "POST", "/api/organization/"+c.orgID+"/accounts", map[string]string{
		"primaryEmailAddress": address,
		"password":            password,
		"displayName":         displayName,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("zoho create account failed: %d %s", resp.StatusCode, body)
	}

	var result struct {
		Data MailAccount `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result.Data, nil
}

// DeleteAccount removes a mailbox by address
func (c *Client) DeleteAccount(ctx context.Context, address string) error {
	resp, err := c.do(ctx, "DELETE", "/api/organization/"+c.orgID+"/accounts", map[string]any{
		"emailIds": []map[string]string{{"emailId": address}},
		"mode":     "deleteAccount",
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("zoho delete account failed: %d %s", resp.StatusCode, body)
	}
	return nil
}

// StorageUsage is mailbox storage consumption in megabytes
type StorageUsage struct {
	UsedMB  int64 `json:"usedMb"`
	TotalMB int64 `json:"totalMb"`
}

// AccountStorage fetches storage usage for a mailbox by Zoho account ID
func (c *Client) AccountStorage(ctx context.Context, zohoAccountID string) (*StorageUsage, error) {
	resp, err := c.do(ctx, "GET", "/api/organization/"+c.orgID+"/accounts/"+zohoAccountID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("zoho account lookup failed: %d %s", resp.StatusCode, body)
	}

	var result struct {
		Data struct {
			UsedStorage    int64 `json:"usedStorage"`
			AllowedStorage int64 `json:"allowedStorage"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &StorageUsage{
		UsedMB:  result.Data.UsedStorage,
		TotalMB: result.Data.AllowedStorage,
	}, nil
}
