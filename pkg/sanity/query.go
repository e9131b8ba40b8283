package sanity

import (
	"encoding/json"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// QueryMethod selects how a query is sent.
type QueryMethod string

const (
	// QueryMethodAuto sends GET unless the URL would be too long.
	QueryMethodAuto QueryMethod = ""
	QueryMethodGET  QueryMethod = "GET"
	QueryMethodPOST QueryMethod = "POST"
)

// Perspective values understood by the query endpoint. Release names are also accepted.
const (
	PerspectiveRaw       = "raw"
	PerspectivePublished = "published"
	PerspectiveDrafts    = "drafts"
)

var paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QueryRequest is a GROQ query with its parameters and options.
type QueryRequest struct {
	Query           string
	Params          map[string]any
	Perspective     string
	ResultSourceMap bool
	Tag             string
	Explain         bool
	// ReturnQuery echoes the query in the response. Nil leaves the server default.
	ReturnQuery *bool
	Method      QueryMethod
}

// NewQuery creates a query request.
func NewQuery(groq string) *QueryRequest {
	return &QueryRequest{Query: groq}
}

// WithParam binds $name to value.
func (q *QueryRequest) WithParam(name string, value any) *QueryRequest {
	if q.Params == nil {
		q.Params = make(map[string]any)
	}

	q.Params[name] = value

	return q
}

// WithPerspective sets the perspective.
func (q *QueryRequest) WithPerspective(p string) *QueryRequest {
	q.Perspective = p

	return q
}

// WithTag sets the request tag.
func (q *QueryRequest) WithTag(tag string) *QueryRequest {
	q.Tag = tag

	return q
}

// WithMethod forces GET or POST.
func (q *QueryRequest) WithMethod(m QueryMethod) *QueryRequest {
	q.Method = m

	return q
}

// WithResultSourceMap asks for a content source map.
func (q *QueryRequest) WithResultSourceMap() *QueryRequest {
	q.ResultSourceMap = true

	return q
}

// Validate checks the request before it is sent.
func (q *QueryRequest) Validate() error {
	err := validation.ValidateStruct(q,
		validation.Field(&q.Query, validation.Required),
		validation.Field(&q.Method, validation.In(QueryMethodAuto, QueryMethodGET, QueryMethodPOST)),
		validation.Field(&q.Params, validation.By(validateParamNames)),
	)
	if err != nil {
		return &ValidationError{Err: err}
	}

	return nil
}

func validateParamNames(value interface{}) error {
	params, _ := value.(map[string]any)
	for name := range params {
		if !paramNamePattern.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidParamName, name)
		}
	}

	return nil
}

// QueryResponse is the result of a query.
type QueryResponse struct {
	Ms       int             `json:"ms"`
	Query    string          `json:"query,omitempty"`
	Result   json.RawMessage `json:"result"`
	SyncTags []string        `json:"syncTags,omitempty"`

	// Raw is the response body as received.
	Raw json.RawMessage `json:"-"`
}

type queryResponseAlias QueryResponse

// ParseQueryResponse decodes a query response body.
func ParseQueryResponse(status int, body []byte) (*QueryResponse, error) {
	var out queryResponseAlias

	err := json.Unmarshal(body, &out)
	if err != nil {
		return nil, &ParseError{StatusCode: status, Body: body, Err: err}
	}

	res := QueryResponse(out)
	res.Raw = append(json.RawMessage(nil), body...)

	return &res, nil
}

// Decode unmarshals the result into v.
func (r *QueryResponse) Decode(v any) error {
	if len(r.Result) == 0 {
		return &ParseError{StatusCode: 200, Body: r.Raw, Err: ErrMissingResult}
	}

	err := json.Unmarshal(r.Result, v)
	if err != nil {
		return &ParseError{StatusCode: 200, Body: r.Raw, Err: err}
	}

	return nil
}

// MarshalJSON returns the original body when available so that re-encoding
// preserves fields not modelled here.
func (r QueryResponse) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}

	return json.Marshal(queryResponseAlias(r))
}
