package forum

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

var errEmptyTimestamp = errors.New("empty timestamp")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status    int
	Detail    string
	RequestID string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Detail)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Message returns the text worth showing to a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return err.Error()
}

// newAPIError extracts a readable detail from FastAPI style error bodies:
// {"detail": "..."} or {"detail": [{"msg": "..."}]} or {"message": "..."}.
func newAPIError(status int, body []byte, requestID string) *APIError {
	return &APIError{
		Status:    status,
		Detail:    errorDetail(status, body),
		RequestID: requestID,
	}
}

func errorDetail(status int, body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if detail := decodeDetail(payload.Detail); detail != "" {
			if status == http.StatusUnprocessableEntity && strings.HasPrefix(strings.TrimSpace(string(payload.Detail)), "[") {
				return "validation error: " + detail
			}
			return detail
		}
		if strings.TrimSpace(payload.Message) != "" {
			return strings.TrimSpace(payload.Message)
		}
	}
	switch status {
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusForbidden:
		return "not allowed to perform this action"
	case http.StatusInternalServerError:
		return "internal server error"
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		return text
	}
	return http.StatusText(status)
}

func decodeDetail(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if msg := strings.TrimSpace(item.Msg); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return strings.TrimSpace(string(raw))
}
