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

package roundtrip

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// restoreScroll tries at most maxAttempts times with a fixed interval and
// stops at the first success. It returns the attempts made.
func restoreScroll(ctx context.Context, scroller Scroller, offset float64, maxAttempts int, interval time.Duration) (int, bool) {
	attempts := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(maxAttempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		attempts++

		return scroller.ScrollTo(ctx, offset)
	}, policy)

	return attempts, err == nil
}
