// Package dns checks the live delegation (NS and SOA) of a domain
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
	"golang.org/x/sync/errgroup"

	"github.com/AmanuelCh/whois-domain-lookup/pkg/models"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 3
)

// Client provides DNS query functionality
type Client struct {
	dnsServers []string
	timeout    time.Duration
	retries    int
}

// NewClient creates a new DNS client with the specified timeout. Without
// explicit servers the system resolvers are used.
func NewClient(timeout time.Duration, servers ...string) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if len(servers) == 0 {
		servers = getSystemDNSServers()
	}
	return &Client{
		timeout:    timeout,
		retries:    defaultRetries,
		dnsServers: servers,
	}
}

// getSystemDNSServers returns the system's DNS servers or defaults
func getSystemDNSServers() []string {
	config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(config.Servers) == 0 {
		// Fall back to well-known public DNS servers
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}

	servers := make([]string, 0, len(config.Servers))
	for _, server := range config.Servers {
		servers = append(servers, net.JoinHostPort(server, config.Port))
	}
	return servers
}

// Delegation queries NS and SOA for domain concurrently. Failures are
// reported in the Error field rather than returned.
func (c *Client) Delegation(ctx context.Context, domain string) *models.Delegation {
	result := &models.Delegation{Domain: domain}

	name, err := toASCII(domain)
	if err != nil {
		result.Error = fmt.Sprintf("invalid domain name: %v", err)
		return result
	}

	var (
		ns  []string
		soa *models.SOARecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ns, err = c.QueryNS(gctx, name)
		if err != nil {
			return fmt.Errorf("NS: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		soa, err = c.QuerySOA(gctx, name)
		if err != nil {
			return fmt.Errorf("SOA: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !isNotFoundError(err) {
		result.Error = categorizeError(err)
	}
	result.NameServers = ns
	result.SOA = soa
	return result
}

// toASCII converts an internationalized domain name to its DNS form
func toASCII(domain string) (string, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return "", fmt.Errorf("domain cannot be empty")
	}
	return idna.Lookup.ToASCII(domain)
}

// QueryNS returns NS records for a hostname
func (c *Client) QueryNS(ctx context.Context, hostname string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), dns.TypeNS)

	resp, err := c.query(ctx, msg)
	if err != nil {
		return nil, err
	}

	var records []string
	for _, ans := range resp.Answer {
		if ns, ok := ans.(*dns.NS); ok {
			records = append(records, strings.TrimSuffix(ns.Ns, "."))
		}
	}

	sort.Strings(records)
	return records, nil
}

// QuerySOA returns the SOA record for a hostname
func (c *Client) QuerySOA(ctx context.Context, hostname string) (*models.SOARecord, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), dns.TypeSOA)

	resp, err := c.query(ctx, msg)
	if err != nil {
		return nil, err
	}

	// Check Answer section first, then Authority section
	for _, ans := range append(resp.Answer, resp.Ns...) {
		if soa, ok := ans.(*dns.SOA); ok {
			// Convert admin email format (e.g., admin.example.com -> admin@example.com)
			adminEmail := strings.TrimSuffix(soa.Mbox, ".")
			adminEmail = strings.Replace(adminEmail, ".", "@", 1)

			return &models.SOARecord{
				PrimaryNS:  strings.TrimSuffix(soa.Ns, "."),
				AdminEmail: adminEmail,
				Serial:     soa.Serial,
				Refresh:    soa.Refresh,
				Retry:      soa.Retry,
				Expire:     soa.Expire,
				MinTTL:     soa.Minttl,
			}, nil
		}
	}

	return nil, nil
}

// query performs a DNS query with retry logic
func (c *Client) query(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	client := &dns.Client{
		Timeout: c.timeout,
		Net:     "udp",
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for _, server := range c.dnsServers {
			resp, _, err := client.ExchangeContext(ctx, msg, server)
			if err != nil {
				lastErr = err
				continue
			}

			if resp.Rcode == dns.RcodeNameError {
				return nil, fmt.Errorf("DNS error: NXDOMAIN")
			}
			if resp.Rcode != dns.RcodeSuccess {
				lastErr = fmt.Errorf("DNS error: %s", dns.RcodeToString[resp.Rcode])
				continue
			}

			return resp, nil
		}

		// Wait before retry (except for last attempt)
		if attempt < c.retries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("DNS query failed after %d attempts: %w", c.retries, lastErr)
	}
	return nil, fmt.Errorf("DNS query failed after %d attempts", c.retries)
}

// isNotFoundError checks if the error indicates no records were found
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NXDOMAIN") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "Name Error")
}

// categorizeError converts DNS errors to user-friendly messages
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	// Check for common error patterns
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "DNS query timeout"
	}

	switch {
	case strings.Contains(errStr, "NXDOMAIN"):
		return "domain not found (NXDOMAIN)"
	case strings.Contains(errStr, "SERVFAIL"):
		return "server failure (SERVFAIL)"
	case strings.Contains(errStr, "REFUSED"):
		return "query refused"
	case strings.Contains(errStr, "no such host"):
		return "host not found"
	case strings.Contains(errStr, "i/o timeout"):
		return "DNS query timeout"
	case strings.Contains(errStr, "connection refused"):
		return "DNS server connection refused"
	default:
		return errStr
	}
}
