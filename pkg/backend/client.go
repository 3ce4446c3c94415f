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

// Package backend is the REST client for the action backend. It implements
// every source the action form engine consumes.
package backend

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/actionform/pkg/config"
	"github.com/united-manufacturing-hub/actionform/pkg/logger"
)

var (
	secureOnce         sync.Once
	insecureOnce       sync.Once
	secureHTTPClient   *http.Client
	insecureHTTPClient *http.Client
)

// GetClient returns the shared HTTP client. HTTP/2 is disabled on both
// variants; the insecure one skips certificate verification.
func GetClient(insecureTLS bool) *http.Client {
	if insecureTLS {
		insecureOnce.Do(func() {
			insecureHTTPClient = &http.Client{
				Transport: &http.Transport{
					ForceAttemptHTTP2: false,
					TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
					TLSClientConfig: &tls.Config{
						InsecureSkipVerify: true, //nolint:gosec // opt-in for plants with self-signed certificates
					},
				},
				Timeout: config.DefaultRequestTimeout,
			}
		})

		return insecureHTTPClient
	}

	secureOnce.Do(func() {
		secureHTTPClient = &http.Client{
			Transport: &http.Transport{
				ForceAttemptHTTP2: false,
				TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			},
			Timeout: config.DefaultRequestTimeout,
		}
	})

	return secureHTTPClient
}

// Client talks to one backend on behalf of one plant.
type Client struct {
	baseURL   string
	authToken string
	timeout   time.Duration
	plantID   int
	clientID  int

	retry *retryablehttp.Client
	log   *zap.SugaredLogger
}

func New(api config.APIConfig, plant config.PlantConfig, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = logger.For(logger.ComponentBackend)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = GetClient(api.InsecureTLS)
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.Logger = &zapRetryLogger{logger: log}
	retryClient.CheckRetry = retryOnConnectionErrors(log)
	// hand the last response back instead of a generic "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	timeout := api.Timeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}

	return &Client{
		baseURL:   strings.TrimSuffix(api.URL, "/"),
		authToken: api.AuthToken,
		timeout:   timeout,
		plantID:   plant.PlantID,
		clientID:  plant.ClientID,
		retry:     retryClient,
		log:       log,
	}
}

// PlantID is the plant whose machines this client lists.
func (c *Client) PlantID() int {
	return c.plantID
}

// retryOnConnectionErrors retries transport failures only. HTTP status
// errors are final.
func retryOnConnectionErrors(log *zap.SugaredLogger) retryablehttp.CheckRetry {
	return func(ctx context.Context, _ *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err == nil {
			return false, nil
		}

		errStr := err.Error()
		isRetryable := strings.Contains(errStr, "EOF") ||
			strings.Contains(errStr, "connection reset") ||
			strings.Contains(errStr, "connection refused") ||
			strings.Contains(errStr, "timeout") ||
			strings.Contains(errStr, "no such host") ||
			strings.Contains(errStr, "network is unreachable")
		if isRetryable {
			log.Debugf("Retrying due to connection error: %v", err)
		}

		return isRetryable, nil
	}
}

// zapRetryLogger adapts zap.SugaredLogger to retryablehttp.LeveledLogger.
type zapRetryLogger struct {
	logger *zap.SugaredLogger
}

func (z *zapRetryLogger) Error(msg string, keysAndValues ...interface{}) {
	z.logger.Errorw(msg, keysAndValues...)
}

func (z *zapRetryLogger) Info(msg string, keysAndValues ...interface{}) {
	z.logger.Debugw(msg, keysAndValues...)
}

func (z *zapRetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.logger.Debugw(msg, keysAndValues...)
}

func (z *zapRetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.logger.Warnw(msg, keysAndValues...)
}
