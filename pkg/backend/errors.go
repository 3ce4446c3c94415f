// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/united-manufacturing-hub/actionform/pkg/safejson"
)

// ErrUnauthorized is returned for 401 responses.
var ErrUnauthorized = errors.New("unauthorized: the access token is invalid or has expired, please sign in again")

// APIError is a non-2xx response. Message carries the backend's own
// explanation when the body provides one.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Endpoint, e.Status, e.Message)
	}

	return fmt.Sprintf("%s %s: error response code: %s", e.Method, e.Endpoint, e.Status)
}

// BackendMessage returns the message the backend sent along with the error.
func (e *APIError) BackendMessage() string {
	return e.Message
}

// BackendMessage returns the message the backend sent with err, if any.
func BackendMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	return ""
}

func newAPIError(method, endpoint string, resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", method, endpoint, ErrUnauthorized)
	}

	return &APIError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    extractMessage(body),
	}
}

// extractMessage pulls a human readable message out of an error body. Both
// {"message": ...} and {"Message": ...} shapes occur, as well as plain text.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var obj map[string]any
	if err := safejson.Unmarshal(body, &obj); err != nil {
		if strings.HasPrefix(trimmed, "<") {
			return ""
		}

		return trimmed
	}

	for _, key := range []string{"message", "Message", "title", "error"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}

	return ""
}

func enhanceConnectionError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "EOF"):
		return fmt.Errorf("connection closed unexpectedly before receiving response: %w (possible causes: network issues, server timeout, or firewall blocking)", err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return fmt.Errorf("request timed out: %w (possible causes: slow network or server overload)", err)
	case strings.Contains(msg, "connection refused"):
		return fmt.Errorf("connection refused: %w (possible causes: server down, incorrect URL, or firewall blocking)", err)
	default:
		return fmt.Errorf("connection error: %w (no response received from server)", err)
	}
}
