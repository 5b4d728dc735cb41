package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ReasonInvalidQuantity = "invalid_quantity"
	ReasonInvalidPrice    = "invalid_price_per_session"
	ReasonInvalidTotal    = "invalid_total_price"
	ReasonInvalidStatus   = "invalid_status"
	ReasonTotalMismatch   = "total_price_mismatch"
)

type Verdict string

const (
	VerdictValid     Verdict = "valid"
	VerdictAnomalous Verdict = "anomalous"
)

// Sanitized is the outcome of checking one upstream purchase record: either
// a valid purchase or an anomalous one where only the fields that failed to
// parse were replaced. Reasons is empty exactly when Verdict is VerdictValid.
type Sanitized struct {
	Verdict  Verdict
	Purchase Purchase
	Reasons  []string
}

// UpstreamRecord mirrors the loosely typed payment record. Numeric fields are
// kept raw so that strings, numbers and garbage can all be inspected.
type UpstreamRecord struct {
	ID               string          `json:"id"`
	InstitutionID    string          `json:"institution_id"`
	Quantity         json.RawMessage `json:"quantity"`
	PricePerSession  json.RawMessage `json:"price_per_session"`
	TotalPrice       json.RawMessage `json:"total_price"`
	Status           string          `json:"status"`
	PurchaseDate     json.RawMessage `json:"purchase_date"`
	PaymentReference string          `json:"payment_reference"`
}

// Sanitize is the single ingestion gate for upstream purchase records. It
// only fails when the payload cannot be attributed to an institution at all;
// every other defect is recorded as a reason.
func Sanitize(raw []byte, now time.Time) (Sanitized, error) {
	var rec UpstreamRecord
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return Sanitized{}, ErrMalformedPayload
	}
	rec.InstitutionID = strings.TrimSpace(rec.InstitutionID)
	if rec.InstitutionID == "" {
		return Sanitized{}, ErrInvalidInstitution
	}

	var reasons []string
	p := Purchase{
		ID:            strings.TrimSpace(rec.ID),
		InstitutionID: rec.InstitutionID,
		Source:        PurchaseSourceImport,
		RawPayload:    append([]byte(nil), raw...),
	}
	if ref := strings.TrimSpace(rec.PaymentReference); ref != "" {
		p.PaymentReference = &ref
	}

	quantity, ok := parseQuantity(rec.Quantity)
	if !ok {
		reasons = append(reasons, ReasonInvalidQuantity)
		quantity = 0
	}
	p.Quantity = quantity

	price, ok := parseAmount(rec.PricePerSession)
	if !ok {
		reasons = append(reasons, ReasonInvalidPrice)
		price = decimal.Zero
	}
	p.PricePerSession = price

	if isAbsent(rec.TotalPrice) {
		p.TotalPrice = ComputeTotal(p.Quantity, p.PricePerSession)
	} else if total, ok := parseAmount(rec.TotalPrice); ok {
		p.TotalPrice = total
		p.TotalPriceAuthoritative = true
	} else {
		reasons = append(reasons, ReasonInvalidTotal)
		p.TotalPrice = ComputeTotal(p.Quantity, p.PricePerSession)
	}

	switch status := PurchaseStatus(strings.ToLower(strings.TrimSpace(rec.Status))); {
	case status == "":
		p.Status = PurchaseStatusCompleted
	case status.Valid():
		p.Status = status
	default:
		reasons = append(reasons, ReasonInvalidStatus)
		p.Status = PurchaseStatusPending
	}

	// The date only orders history; a missing or unreadable one falls back to
	// the import time and the original stays in RawPayload.
	date, ok := parseDate(rec.PurchaseDate)
	if !ok {
		date = now
	}
	p.PurchaseDate = date.UTC()

	if len(reasons) == 0 {
		return Sanitized{Verdict: VerdictValid, Purchase: p}, nil
	}

	// Anomalous records never move balances: they are parked as pending for
	// review and cannot be completed as imported.
	reason := strings.Join(reasons, ",")
	p.Status = PurchaseStatusPending
	p.Anomaly = &reason
	return Sanitized{Verdict: VerdictAnomalous, Purchase: p, Reasons: reasons}, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// scalar returns the textual value of a JSON number or string.
func scalar(raw json.RawMessage) (string, bool) {
	if isAbsent(raw) {
		return "", false
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case json.Number:
		return t.String(), true
	case string:
		return strings.TrimSpace(t), true
	default:
		return "", false
	}
}

func parseQuantity(raw json.RawMessage) (int64, bool) {
	s, ok := scalar(raw)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		d, derr := decimal.NewFromString(s)
		if derr != nil || !d.IsInteger() {
			return 0, false
		}
		n = d.IntPart()
	}
	if n <= 0 {
		return 0, false
	}
	return n, true
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	s, ok := scalar(raw)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func parseDate(raw json.RawMessage) (time.Time, bool) {
	s, ok := scalar(raw)
	if !ok {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}
