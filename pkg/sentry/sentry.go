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

package sentry

import (
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const (
	// DefaultAppVersion marks local builds; Sentry stays disabled for them.
	DefaultAppVersion = "0.0.0-dev"

	environmentProduction  = "production"
	environmentDevelopment = "development"

	debounceWindow = 30 * time.Minute
)

var (
	enabled  bool
	debounce = true

	lastSentMu sync.Mutex
	lastSent   = map[string]time.Time{}
)

// EnableTestMode disables debouncing for testing.
func EnableTestMode() {
	debounce = false
}

// InitSentry initializes the Sentry client. An empty DSN or a development
// version leaves reporting disabled; issues are still logged.
func InitSentry(dsn string, appVersion string, log *zap.SugaredLogger) {
	if dsn == "" || appVersion == "" || appVersion == DefaultAppVersion {
		log.Debug("Sentry disabled (no DSN or development build)")

		return
	}

	environment := environmentDevelopment

	version, err := semver.NewVersion(appVersion)
	if err != nil {
		log.Warnf("Failed to parse app version %q, using development environment: %v", appVersion, err)
	} else if version.Prerelease() == "" {
		environment = environmentProduction
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     "actionform@" + appVersion,
	})
	if err != nil {
		log.Errorf("Failed to initialize Sentry: %v", err)

		return
	}

	enabled = true
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) {
	if enabled {
		sentry.Flush(timeout)
	}
}

func getMeaningfulErrorTitle(err error) string {
	message := err.Error()

	if idx := strings.IndexAny(message, ".,:"); idx > 0 {
		message = message[:idx]
	}

	if len(message) > 100 {
		message = message[:97] + "..."
	}

	return message
}

// shouldSend debounces identical titles so a flapping backend does not flood Sentry.
func shouldSend(title string) bool {
	if !enabled {
		return false
	}
	if !debounce {
		return true
	}

	lastSentMu.Lock()
	defer lastSentMu.Unlock()

	if t, ok := lastSent[title]; ok && time.Since(t) < debounceWindow {
		return false
	}
	lastSent[title] = time.Now()

	return true
}

func send(level sentry.Level, err error, context map[string]interface{}) {
	title := getMeaningfulErrorTitle(err)
	if !shouldSend(title) {
		return
	}

	event := sentry.NewEvent()
	event.Level = level
	event.Message = err.Error()
	event.Exception = []sentry.Exception{{
		Type:       title,
		Value:      err.Error(),
		Stacktrace: sentry.ExtractStacktrace(err),
	}}
	if len(context) > 0 {
		event.Contexts = map[string]sentry.Context{"actionform": context}
	}

	sentry.CaptureEvent(event)
}
