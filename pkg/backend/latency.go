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
	"sort"
	"time"

	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"

	"github.com/united-manufacturing-hub/actionform/pkg/models"
)

var latencies = expiremap.NewEx[time.Time, time.Duration](5*time.Minute, 5*time.Minute)

func recordLatency(d time.Duration) {
	latencies.Set(time.Now(), d)
}

// Latency summarises the request durations of the last five minutes.
func Latency() models.Latency {
	return calculateLatency(latencies)
}

func calculateLatency(m *expiremap.ExpireMap[time.Time, time.Duration]) models.Latency {
	var durations []time.Duration
	m.Range(func(_ time.Time, value time.Duration) bool {
		durations = append(durations, value)

		return true
	})
	if len(durations) == 0 {
		return models.Latency{}
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	percentile := func(p float64) time.Duration {
		idx := int(float64(len(durations)) * p)
		if idx >= len(durations) {
			idx = len(durations) - 1
		}

		return durations[idx]
	}

	return models.Latency{
		AvgMs: ms(total / time.Duration(len(durations))),
		MinMs: ms(durations[0]),
		MaxMs: ms(durations[len(durations)-1]),
		P95Ms: ms(percentile(0.95)),
		P99Ms: ms(percentile(0.99)),
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
