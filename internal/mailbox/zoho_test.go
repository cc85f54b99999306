package mailbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestServer(t *testing.T, refreshCount *int32, mailHandler http.HandlerFunc) (*httptest.Server, *Client) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(refreshCount, 1)
		if r.URL.Query().Get("grant_type") != "refresh_token" {
			t.Errorf("Unexpected grant type: %s", r.URL.Query().Get("grant_type"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token",
			"expires_in":   3600,
		})
	})
	if mailHandler != nil {
		mux.HandleFunc("/api/organization/org1/accounts", mailHandler)
	}
	server := httptest.NewServer(mux)

	client := NewClient("cid", "secret", "refresh", "org1")
	client.accountsBase = server.URL
	client.mailBase = server.URL
	return server, client
}

func TestCreateAccount(t *testing.T) {
	var refreshCount int32
	server, client := newTestServer(t, &refreshCount, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Zoho-oauthtoken access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["primaryEmailAddress"] != "info@example.com" {
			t.Errorf("Unexpected address: %s", payload["primaryEmailAddress"])
		}
		if payload["displayName"] != "info" {
			t.Errorf("Expected display name defaulted to local part, got %s", payload["displayName"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{
				"zuid":                "z123",
				"primaryEmailAddress": "info@example.com",
			},
		})
	})
	defer server.Close()

	account, err := client.CreateAccount(context.Background(), "info@example.com", "pass123", "")
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	if account.ZUID != "z123" || account.Address != "info@example.com" {
		t.Errorf("Unexpected account: %+v", account)
	}
}

func TestCreateAccount_APIError(t *testing.T) {
	var refreshCount int32
	server, client := newTestServer(t, &refreshCount, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"status":{"code":409,"description":"account exists"}}`))
	})
	defer server.Close()

	if _, err := client.CreateAccount(context.Background(), "info@example.com", "pass123", ""); err == nil {
		t.Error("CreateAccount() should fail on API error")
	}
}

func TestDeleteAccount(t *testing.T) {
	var refreshCount int32
	server, client := newTestServer(t, &refreshCount, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Expected DELETE, got %s", r.Method)
		}
		var payload struct {
			EmailIds []map[string]string `json:"emailIds"`
			Mode     string              `json:"mode"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		if payload.Mode != "deleteAccount" {
			t.Errorf("Unexpected mode: %s", payload.Mode)
		}
		if len(payload.EmailIds) != 1 || payload.EmailIds[0]["emailId"] != "info@example.com" {
			t.Errorf("Unexpected emailIds: %+v", payload.EmailIds)
		}
		w.Write([]byte(`{"status":{"code":200}}`))
	})
	defer server.Close()

	if err := client.DeleteAccount(context.Background(), "info@example.com"); err != nil {
		t.Fatalf("DeleteAccount() failed: %v", err)
	}
}

func TestAccountStorage(t *testing.T) {
	var refreshCount int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCount, 1)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "access-token", "expires_in": 3600})
	})
	mux.HandleFunc("/api/organization/org1/accounts/z123", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"usedStorage": 120, "allowedStorage": 5120},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient("cid", "secret", "refresh", "org1")
	client.accountsBase = server.URL
	client.mailBase = server.URL

	usage, err := client.AccountStorage(context.Background(), "z123")
	if err != nil {
		t.Fatalf("AccountStorage() failed: %v", err)
	}
	if usage.UsedMB != 120 || usage.TotalMB != 5120 {
		t.Errorf("Unexpected usage: %+v", usage)
	}
}

func TestGetAccessToken_RefreshEarly(t *testing.T) {
	var refreshCount int32
	server, client := newTestServer(t, &refreshCount, nil)
	defer server.Close()

	now := time.Now()
	client.now = func() time.Time { return now }

	if _, err := client.getAccessToken(context.Background()); err != nil {
		t.Fatalf("getAccessToken() failed: %v", err)
	}

	// Cached before the 60s-early expiry
	now = now.Add(3500 * time.Second)
	if _, err := client.getAccessToken(context.Background()); err != nil {
		t.Fatalf("getAccessToken() failed: %v", err)
	}
	if refreshCount != 1 {
		t.Errorf("Expected 1 refresh, got %d", refreshCount)
	}

	// Past expires_in - 60s, refresh again
	now = now.Add(60 * time.Second)
	if _, err := client.getAccessToken(context.Background()); err != nil {
		t.Fatalf("getAccessToken() failed: %v", err)
	}
	if refreshCount != 2 {
		t.Errorf("Expected 2 refreshes, got %d", refreshCount)
	}
}
