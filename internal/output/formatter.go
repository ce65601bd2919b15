// Package output renders lookup snapshots for the terminal
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/AmanuelCh/whois-domain-lookup/internal/lookup"
	"github.com/AmanuelCh/whois-domain-lookup/pkg/models"
)

const notAvailable = "N/A"

// View is what a formatter renders: the controller snapshot and, when the
// live check ran, the delegation seen in DNS
type View struct {
	Snapshot   lookup.Snapshot
	Delegation *models.Delegation
}

// Formatter defines the interface for output formatters
type Formatter interface {
	Format(view *View) (string, error)
	Write(w io.Writer, view *View) error
}

// TextFormatter formats results as human-readable cards
type TextFormatter struct{}

// JSONFormatter formats results as JSON
type JSONFormatter struct {
	Pretty bool
}

// CSVFormatter formats results as CSV
type CSVFormatter struct{}

// NewFormatter creates a new formatter based on the format type
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "text", "":
		return &TextFormatter{}, nil
	case "json":
		return &JSONFormatter{Pretty: true}, nil
	case "csv":
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Card is one titled group of label/value rows
type Card struct {
	Title string
	Items []Item
}

// Item is a single row of a card
type Item struct {
	Label string
	Value string
}

// Cards groups a record the way the result page lays it out. Absent values
// render as N/A.
func Cards(record *models.WhoisRecord) []Card {
	cards := []Card{
		{Title: "Domain Info", Items: []Item{
			{"Domain Name", record.DomainName},
			{"WHOIS Server", record.WhoisServer},
		}},
		{Title: "Registrar", Items: []Item{
			{"Registrar", record.Registrar},
			{"Referral URL", record.ReferralURL},
		}},
		{Title: "Dates", Items: []Item{
			{"Created", record.CreationDate},
			{"Updated", record.UpdatedDate},
			{"Expires", record.ExpirationDate},
		}},
		{Title: "Name Servers", Items: listItems("Name Server", record.NameServers)},
		{Title: "Contact", Items: []Item{
			{"Emails", record.Emails},
		}},
		{Title: "DNSSEC", Items: []Item{
			{"DNSSEC", record.DNSSEC},
		}},
	}

	if len(record.Status) > 0 {
		cards = append(cards, Card{Title: "Status", Items: listItems("Status", record.Status)})
	}

	if record.HasRegistrant() {
		cards = append(cards, Card{Title: "Registrant", Items: []Item{
			{"Name", record.Name},
			{"Organization", record.Org},
			{"Address", record.Address},
			{"City", record.City},
			{"State", record.State},
			{"Zip Code", record.Zipcode},
			{"Country", record.Country},
		}})
	}

	for i := range cards {
		for j := range cards[i].Items {
			if strings.TrimSpace(cards[i].Items[j].Value) == "" {
				cards[i].Items[j].Value = notAvailable
			}
		}
	}
	return cards
}

// DelegationCard groups the live DNS view of a domain
func DelegationCard(d *models.Delegation) Card {
	card := Card{Title: "Live Delegation"}
	if d.Error != "" {
		card.Items = append(card.Items, Item{"Error", d.Error})
		return card
	}

	card.Items = append(card.Items, listItems("NS", d.NameServers)...)
	if d.SOA != nil {
		card.Items = append(card.Items,
			Item{"SOA Primary", d.SOA.PrimaryNS},
			Item{"SOA Contact", d.SOA.AdminEmail},
			Item{"SOA Serial", strconv.FormatUint(uint64(d.SOA.Serial), 10)},
		)
	} else {
		card.Items = append(card.Items, Item{"SOA", notAvailable})
	}
	return card
}

func listItems(label string, values []string) []Item {
	if len(values) == 0 {
		return []Item{{Label: label, Value: notAvailable}}
	}
	items := make([]Item, 0, len(values))
	for _, v := range values {
		items = append(items, Item{Label: label, Value: v})
	}
	return items
}

// Format returns the formatted string
func (f *TextFormatter) Format(view *View) (string, error) {
	var sb strings.Builder
	if err := f.Write(&sb, view); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Write writes the formatted output to the writer
func (f *TextFormatter) Write(w io.Writer, view *View) error {
	switch st := view.Snapshot.State.(type) {
	case lookup.Loading:
		_, err := fmt.Fprintf(w, "Looking up %s...\n", st.Domain)
		return err
	case lookup.Failure:
		_, err := fmt.Fprintf(w, "Error: %s\n", st.Message)
		return err
	case lookup.Success:
		separator := strings.Repeat("=", 60)
		if _, err := fmt.Fprintf(w, "WHOIS: %s\n%s\n", st.Record.DomainName, separator); err != nil {
			return err
		}
		cards := Cards(&st.Record)
		if view.Delegation != nil {
			cards = append(cards, DelegationCard(view.Delegation))
		}
		for _, card := range cards {
			if err := writeCard(w, card); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintln(w, separator)
		return err
	default:
		_, err := fmt.Fprintln(w, "Enter a domain name to look up.")
		return err
	}
}

func writeCard(w io.Writer, card Card) error {
	if _, err := fmt.Fprintf(w, "\n%s\n%s\n", card.Title, strings.Repeat("-", len(card.Title))); err != nil {
		return err
	}
	for _, item := range card.Items {
		if _, err := fmt.Fprintf(w, "  %-14s %s\n", item.Label+":", item.Value); err != nil {
			return err
		}
	}
	return nil
}

// Document is the JSON form of a view
type Document struct {
	lookup.Frame
	Delegation *models.Delegation `json:"delegation,omitempty"`
}

// NewDocument builds the JSON form of a view
func NewDocument(view *View) Document {
	return Document{Frame: view.Snapshot.Frame(), Delegation: view.Delegation}
}

// Format returns the formatted string
func (f *JSONFormatter) Format(view *View) (string, error) {
	var sb strings.Builder
	if err := f.Write(&sb, view); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Write writes the formatted output to the writer
func (f *JSONFormatter) Write(w io.Writer, view *View) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(NewDocument(view))
}

var csvHeader = []string{
	"phase", "input", "domain_name", "registrar", "creation_date", "updated_date",
	"expiration_date", "emails", "whois_server", "dnssec", "name_servers", "status",
	"error_kind", "error_message", "live_name_servers", "soa_serial",
}

// Format returns the formatted string
func (f *CSVFormatter) Format(view *View) (string, error) {
	var sb strings.Builder
	if err := f.Write(&sb, view); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Write writes the formatted output to the writer
func (f *CSVFormatter) Write(w io.Writer, view *View) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	frame := view.Snapshot.Frame()
	row := make([]string, len(csvHeader))
	row[0] = string(frame.Phase)
	row[1] = frame.Input
	if r := frame.Record; r != nil {
		row[2] = r.DomainName
		row[3] = r.Registrar
		row[4] = r.CreationDate
		row[5] = r.UpdatedDate
		row[6] = r.ExpirationDate
		row[7] = r.Emails
		row[8] = r.WhoisServer
		row[9] = r.DNSSEC
		row[10] = strings.Join(r.NameServers, ";")
		row[11] = strings.Join(r.Status, ";")
	}
	if e := frame.Error; e != nil {
		row[12] = string(e.Kind)
		row[13] = e.Message
	}
	if d := view.Delegation; d != nil {
		row[14] = strings.Join(d.NameServers, ";")
		if d.SOA != nil {
			row[15] = strconv.FormatUint(uint64(d.SOA.Serial), 10)
		}
	}

	if err := writer.Write(row); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
