package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gosimple/slug"
	institutiondomain "github.com/railzwaylabs/interviewledger/internal/institution/domain"
	ledgerdomain "github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/shopspring/decimal"
)

const (
	numberPrefix    = "INV-"
	numberLength    = 8
	unassignedToken = "UNASSIGNED"
	zeroAmount      = "0.00"
	dateLayout      = "2006-01-02"
)

type Party struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Email   string `json:"email,omitempty"`
}

type Line struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

// Document is a rendered invoice. All amounts are pre-formatted strings with
// exactly two decimals.
type Document struct {
	Number        string    `json:"number"`
	IssueDate     time.Time `json:"issue_date"`
	PurchaseID    string    `json:"purchase_id"`
	InstitutionID string    `json:"institution_id"`
	Status        string    `json:"status"`
	Issuer        Party     `json:"issuer"`
	BillTo        Party     `json:"bill_to"`
	Payer         Party     `json:"payer"`
	Currency      string    `json:"currency"`
	Lines         []Line    `json:"lines"`
	Total         string    `json:"total"`
	Notes         []string  `json:"notes,omitempty"`
}

type RenderInput struct {
	Item        ledgerdomain.BillingHistoryItem
	Institution *institutiondomain.Institution
	Payer       Party
	Pricing     *pricingdomain.Resolution
	Issuer      Party
	Currency    string
}

// Number derives the invoice number from the purchase id. The same purchase
// id always yields the same number.
func Number(purchaseID string) string {
	var b strings.Builder
	for _, r := range purchaseID {
		if b.Len() == numberLength {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return numberPrefix + unassignedToken
	}
	return numberPrefix + b.String()
}

// FormatAmount renders d with two decimals, rounding half away from zero.
// Negative amounts render as zero.
func FormatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return zeroAmount
	}
	return d.StringFixed(2)
}

// Render builds the invoice for one billing history item. It never fails:
// amounts that cannot be trusted render as 0.00 with a note.
func Render(in RenderInput) Document {
	item := in.Item
	doc := Document{
		Number:        Number(item.PurchaseID),
		IssueDate:     item.PurchaseDate.UTC(),
		PurchaseID:    item.PurchaseID,
		InstitutionID: item.InstitutionID,
		Status:        string(item.Status),
		Issuer:        in.Issuer,
		Payer:         in.Payer,
		Currency:      strings.ToUpper(strings.TrimSpace(in.Currency)),
		Total:         FormatAmount(item.TotalPrice),
	}

	doc.BillTo = Party{Name: item.InstitutionID}
	if in.Institution != nil {
		doc.BillTo = Party{
			Name:    in.Institution.Name,
			Address: in.Institution.Address,
			Email:   in.Institution.BillingEmail,
		}
	}
	if doc.Payer.Name == "" && doc.Payer.Email == "" {
		doc.Payer = doc.BillTo
	}

	doc.Lines = []Line{{
		Description: "Interview sessions",
		Quantity:    item.Quantity,
		UnitPrice:   FormatAmount(item.PricePerSession),
		Amount:      doc.Total,
	}}

	if item.Anomalous {
		doc.Notes = append(doc.Notes, "amounts under review: "+strings.Join(item.Warnings, ", "))
	}
	if item.TotalPrice.IsNegative() {
		doc.Notes = append(doc.Notes, "total unavailable")
	}
	if p := in.Pricing; p != nil {
		note := fmt.Sprintf("current session rate %s per minute (%s pricing)", FormatAmount(p.SessionPrice), p.Source)
		if p.Stale && p.StaleSince != nil {
			note += ", as of " + p.StaleSince.UTC().Format(time.RFC3339)
		}
		doc.Notes = append(doc.Notes, note)
	}
	return doc
}

// FileName is a filesystem and object-key safe name for the document.
func (d Document) FileName(ext string) string {
	name := slug.Make(d.Number + " " + d.BillTo.Name)
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// Text renders the document as plain text.
func (d Document) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "INVOICE %s\n", d.Number)
	fmt.Fprintf(&b, "Issue date: %s\n", d.IssueDate.Format(dateLayout))
	fmt.Fprintf(&b, "Purchase: %s (%s)\n\n", d.PurchaseID, d.Status)

	writeParty(&b, "From", d.Issuer)
	writeParty(&b, "Bill to", d.BillTo)
	writeParty(&b, "Payer", d.Payer)

	b.WriteString("\n")
	fmt.Fprintf(&b, "%-24s %8s %12s %12s\n", "Description", "Qty", "Unit price", "Amount")
	for _, l := range d.Lines {
		fmt.Fprintf(&b, "%-24s %8d %12s %12s\n", l.Description, l.Quantity, l.UnitPrice, l.Amount)
	}
	b.WriteString("\n")
	if d.Currency != "" {
		fmt.Fprintf(&b, "Total (%s): %s\n", d.Currency, d.Total)
	} else {
		fmt.Fprintf(&b, "Total: %s\n", d.Total)
	}

	if len(d.Notes) > 0 {
		b.WriteString("\nNotes:\n")
		for _, n := range d.Notes {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
	}
	return b.String()
}

func writeParty(b *strings.Builder, label string, p Party) {
	if p.Name == "" && p.Address == "" && p.Email == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, p.Name)
	if p.Address != "" {
		fmt.Fprintf(b, "  %s\n", p.Address)
	}
	if p.Email != "" {
		fmt.Fprintf(b, "  %s\n", p.Email)
	}
}
