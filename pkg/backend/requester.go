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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/united-manufacturing-hub/actionform/pkg/safejson"
	"github.com/united-manufacturing-hub/actionform/pkg/sentry"
)

// Endpoint is a path below the API base URL.
type Endpoint string

// do sends one request and returns the response body of a 2xx response.
func (c *Client) do(ctx context.Context, method string, endpoint Endpoint, contentType string, body []byte) (responseBody []byte, responseErr error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+string(endpoint), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	start := time.Now()
	response, err := c.retry.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", method, endpoint, ctx.Err())
		}

		return nil, fmt.Errorf("%s %s: %w", method, endpoint, enhanceConnectionError(err))
	}
	recordLatency(time.Since(start))

	defer func() {
		if err := response.Body.Close(); err != nil {
			if responseErr != nil {
				c.log.Errorf("Error closing response body: %v", err)
			} else {
				responseErr = fmt.Errorf("error closing response body: %w", err)
			}
		}
	}()

	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, endpoint, err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		apiErr := newAPIError(method, string(endpoint), response, bodyBytes)
		if response.StatusCode >= 500 {
			sentry.ReportIssueWithContext(apiErr, sentry.IssueTypeWarning, c.log, map[string]interface{}{
				"endpoint":    string(endpoint),
				"method":      method,
				"status_code": response.StatusCode,
			})
		}

		return nil, apiErr
	}

	return bodyBytes, nil
}

// getJSON performs a GET and decodes the response into R. An empty body
// yields a zero R.
func getJSON[R any](ctx context.Context, c *Client, endpoint Endpoint) (*R, error) {
	body, err := c.do(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}

	var result R
	if len(bytes.TrimSpace(body)) == 0 {
		return &result, nil
	}
	if err := safejson.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("GET %s: failed to decode response: %w", endpoint, err)
	}

	return &result, nil
}

// sendJSON encodes data as the request body of method and decodes the
// response into R.
func sendJSON[R any, T any](ctx context.Context, c *Client, method string, endpoint Endpoint, data *T) (*R, error) {
	payload, err := safejson.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to encode request: %w", method, endpoint, err)
	}

	body, err := c.do(ctx, method, endpoint, "application/json", payload)
	if err != nil {
		return nil, err
	}

	var result R
	if len(bytes.TrimSpace(body)) == 0 {
		return &result, nil
	}
	if err := safejson.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%s %s: failed to decode response: %w", method, endpoint, err)
	}

	return &result, nil
}
