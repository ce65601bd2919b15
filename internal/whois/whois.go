// Package whois provides a WHOIS lookup provider that talks to registry
// WHOIS servers directly on port 43
package whois

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/AmanuelCh/whois-domain-lookup/internal/lookup"
	"github.com/AmanuelCh/whois-domain-lookup/pkg/models"
)

const (
	dnssecSigned   = "signedDelegation"
	dnssecUnsigned = "unsigned"
)

// Client is a lookup.Provider that queries WHOIS servers directly
type Client struct {
	timeout time.Duration
	whois   *whois.Client
}

// NewClient creates a new WHOIS client. A zero timeout keeps the library
// default for the port-43 connection.
func NewClient(timeout time.Duration) *Client {
	client := whois.NewClient()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Client{
		timeout: timeout,
		whois:   client,
	}
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "direct"
}

// Query performs a WHOIS lookup for the registrable part of domain
func (c *Client) Query(ctx context.Context, domain string) (*models.WhoisRecord, error) {
	base := extractBaseDomain(domain)
	if base == "" {
		return nil, &lookup.ProviderError{Message: fmt.Sprintf("%q is not a registrable domain name", strings.TrimSpace(domain))}
	}

	if err := ctx.Err(); err != nil {
		return nil, &lookup.TransportError{Err: err}
	}

	raw, err := c.fetch(ctx, base)
	if err != nil {
		return nil, err
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return nil, interpretParseError(err)
	}

	record := recordFromWhois(parsed)
	if record.DomainName == "" {
		record.DomainName = base
	}
	return &record, nil
}

// fetch runs the blocking WHOIS query and gives up when ctx is done
func (c *Client) fetch(ctx context.Context, domain string) (string, error) {
	type result struct {
		raw string
		err error
	}
	ch := make(chan result, 1)

	go func() {
		raw, err := c.whois.Whois(domain)
		ch <- result{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", &lookup.TransportError{Err: fmt.Errorf("WHOIS lookup cancelled: %w", ctx.Err())}
	case res := <-ch:
		if res.err != nil {
			return "", categorizeError(res.err)
		}
		return res.raw, nil
	}
}

// recordFromWhois projects parsed WHOIS data onto the record shape the
// remote API returns
func recordFromWhois(info whoisparser.WhoisInfo) models.WhoisRecord {
	record := models.WhoisRecord{
		NameServers: []string{},
	}

	if d := info.Domain; d != nil {
		record.DomainName = strings.ToLower(d.Domain)
		record.WhoisServer = d.WhoisServer
		record.CreationDate = normalizeDate(d.CreatedDate)
		record.UpdatedDate = normalizeDate(d.UpdatedDate)
		record.ExpirationDate = normalizeDate(d.ExpirationDate)
		record.Status = d.Status
		if len(d.NameServers) > 0 {
			record.NameServers = d.NameServers
		}
		if d.DNSSec {
			record.DNSSEC = dnssecSigned
		} else {
			record.DNSSEC = dnssecUnsigned
		}
	}

	if r := info.Registrar; r != nil {
		record.Registrar = r.Name
		record.ReferralURL = r.ReferralURL
	}

	if r := info.Registrant; r != nil {
		record.Name = r.Name
		record.Org = r.Organization
		record.Address = r.Street
		record.City = r.City
		record.State = r.Province
		record.Zipcode = r.PostalCode
		record.Country = r.Country
	}

	record.Emails = joinEmails(info.Registrant, info.Administrative, info.Technical, info.Registrar)

	return record
}

// joinEmails collects distinct contact emails in contact order
func joinEmails(contacts ...*whoisparser.Contact) string {
	seen := make(map[string]struct{}, len(contacts))
	var emails []string
	for _, c := range contacts {
		if c == nil || c.Email == "" {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(c.Email))
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}
	return strings.Join(emails, " ")
}

// normalizeDate renders a registry date as ISO-8601, keeping the original
// text when no known layout matches
func normalizeDate(dateStr string) string {
	if strings.TrimSpace(dateStr) == "" {
		return ""
	}
	t, err := parseDate(dateStr)
	if err != nil {
		return dateStr
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.UTC().Format(time.RFC3339)
}

// extractBaseDomain returns the base domain from a subdomain
// e.g., "www.example.com" -> "example.com"
func extractBaseDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ""
	}

	// Remove protocol if present
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")

	// Remove path if present
	if idx := strings.Index(domain, "/"); idx != -1 {
		domain = domain[:idx]
	}

	// Remove port if present
	if idx := strings.Index(domain, ":"); idx != -1 {
		domain = domain[:idx]
	}

	domain = strings.TrimSuffix(domain, ".")

	parts := strings.Split(domain, ".")
	if len(parts) < 2 {
		return ""
	}
	for _, p := range parts {
		if p == "" {
			return ""
		}
	}

	if len(parts) >= 3 {
		lastTwo := parts[len(parts)-2] + "." + parts[len(parts)-1]
		if secondLevelSuffixes[lastTwo] {
			return strings.Join(parts[len(parts)-3:], ".")
		}
	}

	// Return last two parts for standard TLDs
	return strings.Join(parts[len(parts)-2:], ".")
}

// secondLevelSuffixes lists public suffixes registered below a ccTLD
var secondLevelSuffixes = map[string]bool{
	"co.uk": true, "org.uk": true, "me.uk": true, "ltd.uk": true,
	"com.au": true, "net.au": true, "org.au": true,
	"co.nz": true, "net.nz": true, "org.nz": true,
	"co.jp": true, "ne.jp": true, "or.jp": true,
	"com.br": true, "net.br": true, "org.br": true,
}

// parseDate attempts to parse a date string in various formats
func parseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05-07:00",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05 MST",
		"2006-01-02",
		"02-Jan-2006",
		"January 02, 2006",
		"02/01/2006",
		"01/02/2006",
		"2006/01/02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// categorizeError converts WHOIS client errors into lookup errors with
// user-friendly causes
func categorizeError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "no whois server"):
		return &lookup.ProviderError{Message: "no WHOIS server found for this TLD"}
	case strings.Contains(errStr, "rate limit"):
		return &lookup.ProviderError{Message: "rate limited by WHOIS server"}
	case strings.Contains(errStr, "timeout"):
		return &lookup.TransportError{Err: fmt.Errorf("WHOIS server timeout: %w", err)}
	case strings.Contains(errStr, "connection refused"):
		return &lookup.TransportError{Err: fmt.Errorf("WHOIS server connection refused: %w", err)}
	default:
		return &lookup.TransportError{Err: err}
	}
}

// interpretParseError maps registry answers the parser reports as errors
// onto provider errors; anything else is a parse failure
func interpretParseError(err error) error {
	switch {
	case errors.Is(err, whoisparser.ErrNotFoundDomain):
		return &lookup.ProviderError{Message: "domain is not registered"}
	case errors.Is(err, whoisparser.ErrReservedDomain):
		return &lookup.ProviderError{Message: "domain is reserved by the registry"}
	case errors.Is(err, whoisparser.ErrPremiumDomain):
		return &lookup.ProviderError{Message: "domain is available at premium price"}
	case errors.Is(err, whoisparser.ErrBlockedDomain):
		return &lookup.ProviderError{Message: "domain is blocked due to brand protection"}
	case errors.Is(err, whoisparser.ErrDomainLimitExceed):
		return &lookup.ProviderError{Message: "rate limited by WHOIS server"}
	default:
		return &lookup.ParseError{Err: err}
	}
}
