package sanity

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultHistoryLimit is the transaction limit used when none is given.
const DefaultHistoryLimit = 100

// HistoryRevision is a document as it was at one revision.
type HistoryRevision struct {
	ID        string `json:"_id"`
	Rev       string `json:"_rev"`
	Type      string `json:"_type"`
	CreatedAt string `json:"_createdAt"`
	UpdatedAt string `json:"_updatedAt"`

	// Document holds every field, including those above.
	Document Document `json:"-"`
}

// UnmarshalJSON keeps the full document alongside the system fields.
func (h *HistoryRevision) UnmarshalJSON(data []byte) error {
	type alias HistoryRevision

	var a alias

	err := json.Unmarshal(data, &a)
	if err != nil {
		return err
	}

	var doc Document

	err = json.Unmarshal(data, &doc)
	if err != nil {
		return err
	}

	*h = HistoryRevision(a)
	h.Document = doc

	return nil
}

// DocumentRevisionResponse is the result of a revision lookup.
type DocumentRevisionResponse struct {
	Documents []HistoryRevision `json:"documents"`
}

// RevisionOptions select a revision by id or by point in time. Both may be empty.
type RevisionOptions struct {
	Revision string
	Time     time.Time
}

// Values encodes the options as query string parameters.
func (o *RevisionOptions) Values() url.Values {
	v := url.Values{}
	if o == nil {
		return v
	}

	if o.Revision != "" {
		v.Set("revision", o.Revision)
	}

	if !o.Time.IsZero() {
		v.Set("time", o.Time.UTC().Format(time.RFC3339))
	}

	return v
}

// TransactionsOptions filter the transaction history of a set of documents.
type TransactionsOptions struct {
	// IncludeContent returns mutation content; it is excluded by default.
	IncludeContent  bool
	FromTime        time.Time
	ToTime          time.Time
	FromTransaction string
	ToTransaction   string
	Authors         []string
	Reverse         bool
	// Limit caps the number of transactions; 0 means 100.
	Limit int
}

// Values encodes the options as query string parameters.
func (o *TransactionsOptions) Values() url.Values {
	opts := o
	if opts == nil {
		opts = &TransactionsOptions{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	v := url.Values{}
	v.Set("excludeContent", strconv.FormatBool(!opts.IncludeContent))
	v.Set("reverse", strconv.FormatBool(opts.Reverse))
	v.Set("limit", strconv.Itoa(limit))

	if !opts.FromTime.IsZero() {
		v.Set("fromTime", opts.FromTime.UTC().Format(time.RFC3339))
	}

	if !opts.ToTime.IsZero() {
		v.Set("toTime", opts.ToTime.UTC().Format(time.RFC3339))
	}

	if opts.FromTransaction != "" {
		v.Set("fromTransaction", opts.FromTransaction)
	}

	if opts.ToTransaction != "" {
		v.Set("toTransaction", opts.ToTransaction)
	}

	if len(opts.Authors) > 0 {
		v.Set("authors", strings.Join(opts.Authors, ","))
	}

	return v
}

// TransactionHistoryItem is one transaction touching the requested documents.
type TransactionHistoryItem struct {
	ID          string           `json:"id"`
	Timestamp   string           `json:"timestamp"`
	Author      string           `json:"author,omitempty"`
	DocumentIDs []string         `json:"documentIDs,omitempty"`
	Mutations   []map[string]any `json:"mutations,omitempty"`
}

// ParseTransactionHistory decodes an NDJSON body, one transaction per line.
// Blank lines are skipped.
func ParseTransactionHistory(status int, body []byte) ([]TransactionHistoryItem, error) {
	items := make([]TransactionHistoryItem, 0)

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), len(body)+1)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var item TransactionHistoryItem

		err := json.Unmarshal(line, &item)
		if err != nil {
			return nil, &ParseError{StatusCode: status, Body: body, Err: err}
		}

		items = append(items, item)
	}

	err := scanner.Err()
	if err != nil {
		return nil, &ParseError{StatusCode: status, Body: body, Err: err}
	}

	return items, nil
}
