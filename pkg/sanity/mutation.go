package sanity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/nc9/sanity-go/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrMutationEmpty     = errors.New("mutation has no operation")
	ErrMutationAmbiguous = errors.New("mutation has more than one operation")
	ErrDocumentType      = errors.New("document requires _type")
	ErrDocumentID        = errors.New("document requires _id")
	ErrSelectorRequired  = errors.New("id or query is required")
	ErrSelectorAmbiguous = errors.New("only one of id or query may be set")
	ErrPatchEmpty        = errors.New("patch has no operations")
)

// Document is a Sanity document or document fragment.
type Document map[string]any

// ID returns the document's _id, if any.
func (d Document) ID() string {
	id, _ := d["_id"].(string)

	return id
}

// Type returns the document's _type, if any.
func (d Document) Type() string {
	t, _ := d["_type"].(string)

	return t
}

// Selector identifies the documents a delete or patch applies to.
type Selector struct {
	ID     string         `json:"id,omitempty"`
	Query  string         `json:"query,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

func (s Selector) validate() error {
	switch {
	case s.ID == "" && s.Query == "":
		return ErrSelectorRequired
	case s.ID != "" && s.Query != "":
		return ErrSelectorAmbiguous
	default:
		return nil
	}
}

// Insert places items relative to an array selector, such as "tags[-1]".
type Insert struct {
	Before  string `json:"before,omitempty"`
	After   string `json:"after,omitempty"`
	Replace string `json:"replace,omitempty"`
	Items   []any  `json:"items"`
}

// Patch modifies the documents matched by its selector. Build one with
// PatchID or PatchQuery and chain operations.
type Patch struct {
	selector Selector
	ops      patchOps
}

type patchOps struct {
	IfRevisionID   string             `json:"ifRevisionID,omitempty"`
	Set            map[string]any     `json:"set,omitempty"`
	SetIfMissing   map[string]any     `json:"setIfMissing,omitempty"`
	DiffMatchPatch map[string]string  `json:"diffMatchPatch,omitempty"`
	Unset          []string           `json:"unset,omitempty"`
	Inc            map[string]float64 `json:"inc,omitempty"`
	Dec            map[string]float64 `json:"dec,omitempty"`
	Insert         *Insert            `json:"insert,omitempty"`
}

type patchWire struct {
	Selector
	patchOps
}

// PatchID starts a patch of the document with the given id.
func PatchID(id string) *Patch {
	return &Patch{selector: Selector{ID: id}}
}

// PatchQuery starts a patch of every document matched by a GROQ query.
func PatchQuery(query string, params map[string]any) *Patch {
	return &Patch{selector: Selector{Query: query, Params: params}}
}

// Set sets path to value.
func (p *Patch) Set(path string, value any) *Patch {
	if p.ops.Set == nil {
		p.ops.Set = make(map[string]any)
	}

	p.ops.Set[path] = value

	return p
}

// SetIfMissing sets path to value unless it already has one.
func (p *Patch) SetIfMissing(path string, value any) *Patch {
	if p.ops.SetIfMissing == nil {
		p.ops.SetIfMissing = make(map[string]any)
	}

	p.ops.SetIfMissing[path] = value

	return p
}

// Unset removes the given paths.
func (p *Patch) Unset(paths ...string) *Patch {
	p.ops.Unset = append(p.ops.Unset, paths...)

	return p
}

// Inc increments the number at path.
func (p *Patch) Inc(path string, n float64) *Patch {
	if p.ops.Inc == nil {
		p.ops.Inc = make(map[string]float64)
	}

	p.ops.Inc[path] = n

	return p
}

// Dec decrements the number at path.
func (p *Patch) Dec(path string, n float64) *Patch {
	if p.ops.Dec == nil {
		p.ops.Dec = make(map[string]float64)
	}

	p.ops.Dec[path] = n

	return p
}

// Insert places items relative to the array element at ins' selector.
func (p *Patch) Insert(ins Insert) *Patch {
	p.ops.Insert = &ins

	return p
}

// InsertAfter inserts items after the array element at selector, e.g. "tags[-1]".
func (p *Patch) InsertAfter(selector string, items ...any) *Patch {
	return p.Insert(Insert{After: selector, Items: items})
}

// DiffMatchPatch applies a diff-match-patch string to the text at path.
func (p *Patch) DiffMatchPatch(path, patch string) *Patch {
	if p.ops.DiffMatchPatch == nil {
		p.ops.DiffMatchPatch = make(map[string]string)
	}

	p.ops.DiffMatchPatch[path] = patch

	return p
}

// IfRevisionID makes the patch fail unless the document is at revision rev.
func (p *Patch) IfRevisionID(rev string) *Patch {
	p.ops.IfRevisionID = rev

	return p
}

// Mutation wraps the patch as a mutation.
func (p *Patch) Mutation() Mutation {
	return Mutation{Patch: p}
}

// MarshalJSON encodes the selector and operations as one object.
func (p *Patch) MarshalJSON() ([]byte, error) {
	return json.Marshal(patchWire{Selector: p.selector, patchOps: p.ops})
}

// UnmarshalJSON decodes the wire form.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var w patchWire

	err := json.Unmarshal(data, &w)
	if err != nil {
		return err
	}

	p.selector, p.ops = w.Selector, w.patchOps

	return nil
}

func (p *Patch) empty() bool {
	o := p.ops

	return len(o.Set) == 0 && len(o.SetIfMissing) == 0 && len(o.DiffMatchPatch) == 0 &&
		len(o.Unset) == 0 && len(o.Inc) == 0 && len(o.Dec) == 0 && o.Insert == nil
}

// MutationKind names a mutation operation.
type MutationKind string

const (
	KindCreate            MutationKind = "create"
	KindCreateOrReplace   MutationKind = "createOrReplace"
	KindCreateIfNotExists MutationKind = "createIfNotExists"
	KindPatch             MutationKind = "patch"
	KindDelete            MutationKind = "delete"
)

// Mutation is one operation in a transaction. Exactly one field is set.
// It encodes as {"<operation>": {...}}.
type Mutation struct {
	Create            Document  `json:"create,omitempty"`
	CreateOrReplace   Document  `json:"createOrReplace,omitempty"`
	CreateIfNotExists Document  `json:"createIfNotExists,omitempty"`
	Patch             *Patch    `json:"patch,omitempty"`
	Delete            *Selector `json:"delete,omitempty"`
}

// Create creates doc. An _id is generated by the server when absent.
func Create(doc Document) Mutation { return Mutation{Create: doc} }

// CreateOrReplace creates doc or replaces the document with the same _id.
func CreateOrReplace(doc Document) Mutation { return Mutation{CreateOrReplace: doc} }

// CreateIfNotExists creates doc unless a document with its _id exists.
func CreateIfNotExists(doc Document) Mutation { return Mutation{CreateIfNotExists: doc} }

// Delete deletes the document with the given id.
func Delete(id string) Mutation { return Mutation{Delete: &Selector{ID: id}} }

// DeleteByQuery deletes every document matched by a GROQ query.
func DeleteByQuery(query string, params map[string]any) Mutation {
	return Mutation{Delete: &Selector{Query: query, Params: params}}
}

// Kind returns the operation, or "" when none or several are set.
func (m Mutation) Kind() MutationKind {
	var (
		kind MutationKind
		n    int
	)

	if m.Create != nil {
		kind, n = KindCreate, n+1
	}

	if m.CreateOrReplace != nil {
		kind, n = KindCreateOrReplace, n+1
	}

	if m.CreateIfNotExists != nil {
		kind, n = KindCreateIfNotExists, n+1
	}

	if m.Patch != nil {
		kind, n = KindPatch, n+1
	}

	if m.Delete != nil {
		kind, n = KindDelete, n+1
	}

	if n != 1 {
		return ""
	}

	return kind
}

// Validate checks that the mutation is well formed.
func (m Mutation) Validate() error {
	var result *multierror.Error

	switch m.Kind() {
	case KindCreate:
		if m.Create.Type() == "" {
			result = multierror.Append(result, ErrDocumentType)
		}
	case KindCreateOrReplace, KindCreateIfNotExists:
		doc := m.CreateOrReplace
		if doc == nil {
			doc = m.CreateIfNotExists
		}

		if doc.ID() == "" {
			result = multierror.Append(result, ErrDocumentID)
		}

		if doc.Type() == "" {
			result = multierror.Append(result, ErrDocumentType)
		}
	case KindPatch:
		if err := m.Patch.selector.validate(); err != nil {
			result = multierror.Append(result, err)
		}

		if m.Patch.empty() {
			result = multierror.Append(result, ErrPatchEmpty)
		}
	case KindDelete:
		if err := m.Delete.validate(); err != nil {
			result = multierror.Append(result, err)
		}
	default:
		if m.isZero() {
			return ErrMutationEmpty
		}

		return ErrMutationAmbiguous
	}

	return result.ErrorOrNil()
}

func (m Mutation) isZero() bool {
	return m.Create == nil && m.CreateOrReplace == nil && m.CreateIfNotExists == nil &&
		m.Patch == nil && m.Delete == nil
}

// ValidateMutations checks a transaction locally and reports every problem at once.
func ValidateMutations(mutations []Mutation) error {
	if len(mutations) == 0 {
		return &ValidationError{Err: ErrNoMutations}
	}

	var result *multierror.Error

	for i, m := range mutations {
		err := m.Validate()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("mutation %d (%s): %w", i, m.Kind(), err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return &ValidationError{Err: err}
	}

	return nil
}

// MutationOptions control how a transaction is applied and what is returned.
type MutationOptions struct {
	ReturnIDs       bool
	ReturnDocuments bool
	// Visibility is sync, async, or deferred. Empty means sync.
	Visibility                           string
	DryRun                               bool
	TransactionID                        string
	AutoGenerateArrayKeys                bool
	SkipCrossDatasetReferencesValidation bool
}

// Validate checks the options.
func (o *MutationOptions) Validate() error {
	err := validation.ValidateStruct(o,
		validation.Field(&o.Visibility, validation.In(
			constants.VisibilitySync, constants.VisibilityAsync, constants.VisibilityDeferred)),
	)
	if err != nil {
		return &ValidationError{Err: err}
	}

	return nil
}

// Values encodes the options as query string parameters.
func (o *MutationOptions) Values() url.Values {
	opts := o
	if opts == nil {
		opts = &MutationOptions{}
	}

	visibility := opts.Visibility
	if visibility == "" {
		visibility = constants.VisibilitySync
	}

	v := url.Values{}
	v.Set("returnIds", strconv.FormatBool(opts.ReturnIDs))
	v.Set("returnDocuments", strconv.FormatBool(opts.ReturnDocuments))
	v.Set("visibility", visibility)
	v.Set("dryRun", strconv.FormatBool(opts.DryRun))

	if opts.TransactionID != "" {
		v.Set("transactionId", opts.TransactionID)
	}

	if opts.AutoGenerateArrayKeys {
		v.Set("autoGenerateArrayKeys", constants.BooleanTrue)
	}

	if opts.SkipCrossDatasetReferencesValidation {
		v.Set("skipCrossDatasetReferencesValidation", constants.BooleanTrue)
	}

	return v
}

// MutationResult describes the effect of one mutation.
type MutationResult struct {
	ID        string   `json:"id"`
	Operation string   `json:"operation"`
	Document  Document `json:"document,omitempty"`
}

// MutationResponse is the result of a transaction.
type MutationResponse struct {
	TransactionID string           `json:"transactionId"`
	Results       []MutationResult `json:"results"`
	DocumentIDs   []string         `json:"documentIds,omitempty"`
	Documents     []Document       `json:"documents,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type mutationResponseAlias MutationResponse

// ParseMutationResponse decodes a mutate response body.
func ParseMutationResponse(status int, body []byte) (*MutationResponse, error) {
	var out mutationResponseAlias

	err := json.Unmarshal(body, &out)
	if err != nil {
		return nil, &ParseError{StatusCode: status, Body: body, Err: err}
	}

	res := MutationResponse(out)
	res.Raw = append(json.RawMessage(nil), body...)

	return &res, nil
}

// MarshalJSON returns the original body when available.
func (r MutationResponse) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}

	return json.Marshal(mutationResponseAlias(r))
}
