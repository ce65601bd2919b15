// Package models contains shared data structures used across the application
package models

// WhoisRecord is the normalized result of a successful lookup. It is a
// pass-through projection of the provider's "result" object: values are
// copied as returned and absent values are left empty.
type WhoisRecord struct {
	DomainName     string   `json:"domain_name"`
	Registrar      string   `json:"registrar,omitempty"`
	CreationDate   string   `json:"creation_date,omitempty"`
	UpdatedDate    string   `json:"updated_date,omitempty"`
	ExpirationDate string   `json:"expiration_date,omitempty"`
	Emails         string   `json:"emails,omitempty"`
	WhoisServer    string   `json:"whois_server,omitempty"`
	DNSSEC         string   `json:"dnssec,omitempty"`
	NameServers    []string `json:"name_servers"`
	Status         []string `json:"status,omitempty"`

	// Registrant contact, when the registry publishes it
	Name        string `json:"name,omitempty"`
	Org         string `json:"org,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zipcode     string `json:"zipcode,omitempty"`
	Country     string `json:"country,omitempty"`
	ReferralURL string `json:"referral_url,omitempty"`
}

// HasRegistrant reports whether any registrant contact field is populated
func (r *WhoisRecord) HasRegistrant() bool {
	return r.Name != "" || r.Org != "" || r.Address != "" || r.City != "" ||
		r.State != "" || r.Zipcode != "" || r.Country != ""
}

// Delegation contains the live NS and SOA view of a domain
type Delegation struct {
	Domain      string     `json:"domain"`
	NameServers []string   `json:"name_servers,omitempty"`
	SOA         *SOARecord `json:"soa,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// SOARecord represents a Start of Authority record
type SOARecord struct {
	PrimaryNS  string `json:"primary_ns"`
	AdminEmail string `json:"admin_email"`
	Serial     uint32 `json:"serial"`
	Refresh    uint32 `json:"refresh"`
	Retry      uint32 `json:"retry"`
	Expire     uint32 `json:"expire"`
	MinTTL     uint32 `json:"min_ttl"`
}
