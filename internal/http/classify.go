package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nc9/sanity-go/pkg/sanity"
)

// errorBody covers the shapes Sanity uses for error responses:
//
//	{"error": {"description": "...", "type": "..."}}
//	{"error": "Unauthorized", "message": "..."}
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type errorDetail struct {
	Description string `json:"description"`
	Type        string `json:"type"`
}

// ParseErrorMessage extracts the description and type from an error body.
// A body that is not JSON is returned trimmed as the message.
func ParseErrorMessage(body []byte) (message, errType string) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return truncate(strings.TrimSpace(string(body))), ""
	}

	var detail errorDetail
	if len(eb.Error) > 0 && json.Unmarshal(eb.Error, &detail) == nil && detail.Description != "" {
		return detail.Description, detail.Type
	}

	if eb.Message != "" {
		return eb.Message, detail.Type
	}

	var s string
	if len(eb.Error) > 0 && json.Unmarshal(eb.Error, &s) == nil {
		return s, ""
	}

	return "", detail.Type
}

func truncate(s string) string {
	const maxLen = 512
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}

	return s
}

// Classify maps a completed response to the error taxonomy. 2xx yields nil.
func Classify(method, url string, resp *Response) error {
	if resp == nil || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return nil
	}

	msg, typ := ParseErrorMessage(resp.Body)
	core := sanity.ResponseError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Type:       typ,
		Body:       resp.Body,
		Method:     method,
		URL:        url,
		Attempts:   resp.Attempts,
	}

	switch status := resp.StatusCode; {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &sanity.AuthError{ResponseError: core}
	case status == http.StatusTooManyRequests:
		wait, _ := ParseRetryAfter(resp.Headers.Get("Retry-After"), time.Now())

		return &sanity.RateLimitError{ResponseError: core, RetryAfter: wait}
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return &sanity.ValidationError{ResponseError: core}
	case status == http.StatusNotFound:
		return &sanity.NotFoundError{ResponseError: core}
	case status >= 400 && status < 500:
		return &sanity.ClientError{ResponseError: core}
	case status >= 500:
		return &sanity.ServerError{ResponseError: core}
	default:
		// 1xx and 3xx are not expected after redirects are followed.
		return &sanity.ClientError{ResponseError: core}
	}
}
