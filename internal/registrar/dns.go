package registrar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DNSRecord represents one record in a registrar-hosted zone
type DNSRecord struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
	TTL   int    `json:"ttl"`
	Prio  int    `json:"prio"`
}

var zohoMXRecords = []DNSRecord{
	{Type: "MX", Name: "", Value: "mx.zoho.com", TTL: 3600, Prio: 10},
	{Type: "MX", Name: "", Value: "mx2.zoho.com", TTL: 3600, Prio: 20},
	{Type: "MX", Name: "", Value: "mx3.zoho.com", TTL: 3600, Prio: 50},
}

// ListDNSRecords lists all records in a domain's zone
func (c *Client) ListDNSRecords(ctx context.Context, domainName string) ([]DNSRecord, error) {
	resp, err := c.do(ctx, "GET", fmt.Sprintf("/dns/zones/%s/records", domainName), nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Records []DNSRecord `json:"records"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	return data.Records, nil
}

// replaceZone replaces the full record set of a zone
func (c *Client) replaceZone(ctx context.Context, domainName string, records []DNSRecord) error {
	_, err := c.do(ctx, "PUT", fmt.Sprintf("/dns/zones/%s", domainName), map[string]any{
		"name":    domainName,
		"records": map[string]any{"records": records},
	})
	return err
}

// EnsureZohoMX adds the Zoho MX record set to a zone if not already present.
// The zone API replaces the full record set, so existing records are kept.
func (c *Client) EnsureZohoMX(ctx context.Context, domainName string) error {
	existing, err := c.ListDNSRecords(ctx, domainName)
	if err != nil {
		return err
	}

	for _, r := range existing {
		if r.Type == "MX" && strings.Contains(r.Value, "zoho.com") {
			return nil
		}
	}

	records := append(existing, zohoMXRecords...)
	return c.replaceZone(ctx, domainName, records)
}

// SetWWWCname points the www CNAME of a zone at target, replacing any
// previous www CNAME and keeping all other records.
func (c *Client) SetWWWCname(ctx context.Context, domainName, target string) error {
	existing, err := c.ListDNSRecords(ctx, domainName)
	if err != nil {
		return err
	}

	filtered := make([]DNSRecord, 0, len(existing)+1)
	for _, r := range existing {
		if r.Type == "CNAME" && r.Name == "www" {
			if r.Value == target {
				return nil
			}
			continue
		}
		filtered = append(filtered, r)
	}

	filtered = append(filtered, DNSRecord{Type: "CNAME", Name: "www", Value: target, TTL: 3600})
	return c.replaceZone(ctx, domainName, filtered)
}
