package genai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrNoImage = errors.New("response contained no image")

// APIError is a non-2xx answer from the collaborator.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("genai: http %d", e.StatusCode)
	}
	return fmt.Sprintf("genai: http %d: %s", e.StatusCode, e.Message)
}

type googleErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func decodeAPIError(code int, body []byte) *APIError {
	e := &APIError{StatusCode: code, Status: http.StatusText(code)}
	var env googleErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		e.Message = env.Error.Message
		if env.Error.Status != "" {
			e.Status = env.Error.Status
		}
		return e
	}
	e.Message = strings.TrimSpace(string(body))
	return e
}

const entityNotFound = "Requested entity was not found"

// IsEntityNotFound reports the failure that means the key cannot see the
// requested model or project and must be re-entered.
func IsEntityNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), entityNotFound)
}
