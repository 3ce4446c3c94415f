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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/united-manufacturing-hub/actionform/pkg/logger"
	"github.com/united-manufacturing-hub/actionform/pkg/sentry"
)

// Outcome labels.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeValidation = "validation"
	OutcomeAbandoned  = "abandoned"
	OutcomeRejected   = "rejected"
	OutcomeReturned   = "returned"
)

var (
	namespace = "actionform"
	subsystem = "engine"

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "submissions_total",
			Help:      "Submission attempts by mode (create/update) and outcome",
		},
		[]string{"mode", "outcome"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attachment_uploads_total",
			Help:      "Attachment uploads by outcome",
		},
		[]string{"outcome"},
	)

	fetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetch_errors_total",
			Help:      "Failed background fetches by source",
		},
		[]string{"source"},
	)

	staleResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stale_results_discarded_total",
			Help:      "Fetch results dropped because a newer selection superseded them",
		},
		[]string{"source"},
	)

	roundTripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "picker_round_trips_total",
			Help:      "Picker round trips by selection type and outcome",
		},
		[]string{"selection", "outcome"},
	)

	scrollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scroll_restore_attempts",
			Help:      "Attempts needed to restore the scroll position after a picker return",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)
)

func IncSubmission(mode, outcome string) {
	submissionsTotal.WithLabelValues(mode, outcome).Inc()
}

func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

func IncFetchError(source string) {
	fetchErrorsTotal.WithLabelValues(source).Inc()
}

func IncStaleResult(source string) {
	staleResultsTotal.WithLabelValues(source).Inc()
}

func IncRoundTrip(selection, outcome string) {
	roundTripsTotal.WithLabelValues(selection, outcome).Inc()
}

func ObserveScrollAttempts(attempts int) {
	scrollAttempts.Observe(float64(attempts))
}

// SetupMetricsEndpoint serves /metrics on addr in the background.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeError, logger.For(logger.ComponentMetrics))
		}
	}()

	return server
}
