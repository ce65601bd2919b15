// Package whoisapi queries a remote WHOIS lookup API over HTTP
package whoisapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/AmanuelCh/whois-domain-lookup/internal/lookup"
	"github.com/AmanuelCh/whois-domain-lookup/pkg/models"
)

const (
	// DefaultBaseURL is the APILayer WHOIS endpoint host
	DefaultBaseURL   = "https://api.apilayer.com"
	queryPath        = "/whois/query"
	defaultUserAgent = "whoislookup/dev"
	maxBodySize      = 1 << 20
)

var (
	errMissingResult = errors.New("response has no result object")
	errMissingDomain = errors.New("result has no domain_name")
)

// Config contains configuration for the WHOIS API client
type Config struct {
	BaseURL   string
	APIKey    string // #nosec G117
	UserAgent string
	// Timeout bounds a whole request. Zero means no timeout.
	Timeout time.Duration
}

// Client is a lookup.Provider backed by the remote WHOIS API
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
}

// New creates a new WHOIS API client
func New(config Config) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:   baseURL,
		apiKey:    config.APIKey,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "api"
}

// IsAvailable returns true if an API key is configured. Queries are sent
// either way; without a key the provider rejects them.
func (c *Client) IsAvailable() bool {
	return c.apiKey != ""
}

// Query issues one GET /whois/query request for domain
func (c *Client) Query(ctx context.Context, domain string) (*models.WhoisRecord, error) {
	reqURL := fmt.Sprintf("%s%s?domain=%s", c.baseURL, queryPath, escapeQuery(domain))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &lookup.TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	// #nosec G704 - base URL comes from configuration, domain is query-escaped
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &lookup.TransportError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &lookup.TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &lookup.ProviderError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp, body),
		}
	}

	return decodeRecord(body)
}

// queryResponse represents the WHOIS API success body
type queryResponse struct {
	Result *models.WhoisRecord `json:"result"`
}

func decodeRecord(body []byte) (*models.WhoisRecord, error) {
	var parsed queryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &lookup.ParseError{Err: err}
	}
	if parsed.Result == nil {
		return nil, &lookup.ParseError{Err: errMissingResult}
	}
	if parsed.Result.DomainName == "" {
		return nil, &lookup.ParseError{Err: errMissingDomain}
	}
	return parsed.Result, nil
}

// errorMessage picks the most specific message for a non-success response:
// the body's "error" field, then its "message" field, then the status text,
// then a generic fallback.
func errorMessage(resp *http.Response, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, field := range []string{"error", "message"} {
			value := gjson.GetBytes(body, field)
			if value.IsObject() {
				value = value.Get("message")
			}
			if msg := strings.TrimSpace(value.String()); value.Exists() && msg != "" {
				return msg
			}
		}
	}

	if text := statusText(resp); text != "" {
		return text
	}
	return lookup.MsgNotOK
}

// statusText returns the reason phrase of the response status line
func statusText(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	return strings.TrimSpace(text)
}

// escapeQuery percent-encodes a query component, spaces included
func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
