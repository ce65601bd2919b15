package models

import (
	"encoding/json"
	"testing"
)

func TestWhoisRecordDecodesProviderFields(t *testing.T) {
	body := `{
		"domain_name": "example.com",
		"registrar": "Example Registrar, LLC",
		"creation_date": "2020-01-01",
		"updated_date": "2021-01-01",
		"expiration_date": "2025-01-01",
		"emails": "admin@example.com",
		"whois_server": "whois.example.com",
		"dnssec": "unsigned",
		"name_servers": ["ns2.example.com", "ns1.example.com"],
		"status": ["clientTransferProhibited"],
		"org": "Example Corp",
		"country": "US",
		"referral_url": null
	}`

	var record WhoisRecord
	if err := json.Unmarshal([]byte(body), &record); err != nil {
		t.Fatalf("Failed to unmarshal WhoisRecord: %v", err)
	}

	if record.DomainName != "example.com" {
		t.Errorf("Expected DomainName 'example.com', got %s", record.DomainName)
	}
	if record.WhoisServer != "whois.example.com" {
		t.Errorf("Expected WhoisServer 'whois.example.com', got %s", record.WhoisServer)
	}
	if record.DNSSEC != "unsigned" {
		t.Errorf("Expected DNSSEC 'unsigned', got %s", record.DNSSEC)
	}
	if len(record.NameServers) != 2 || record.NameServers[0] != "ns2.example.com" {
		t.Errorf("Expected name servers in provider order, got %v", record.NameServers)
	}
	if record.ReferralURL != "" {
		t.Errorf("Expected null referral_url to decode as empty, got %q", record.ReferralURL)
	}
	if record.Org != "Example Corp" {
		t.Errorf("Expected Org 'Example Corp', got %s", record.Org)
	}
}

func TestHasRegistrant(t *testing.T) {
	tests := []struct {
		name     string
		record   WhoisRecord
		expected bool
	}{
		{"empty", WhoisRecord{DomainName: "example.com"}, false},
		{"name only", WhoisRecord{Name: "John Doe"}, true},
		{"country only", WhoisRecord{Country: "FI"}, true},
		{"referral is not registrant", WhoisRecord{ReferralURL: "https://registrar.example"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.HasRegistrant(); got != tt.expected {
				t.Errorf("HasRegistrant() = %v, want %v", got, tt.expected)
			}
		})
	}
}
