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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formstate"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/roundtrip"
)

var errNoCoordinator = errors.New("console host has no round-trip coordinator")

// consoleHost stands in for the screens of the mobile client. Pickers do
// not prompt; they answer with the selection queued for their kind.
type consoleHost struct {
	out io.Writer
	log *zap.SugaredLogger

	mu     sync.Mutex
	coord  *roundtrip.Coordinator
	queued map[roundtrip.SelectionKind]formstate.Selection
	backs  int
}

func newConsoleHost(out io.Writer, log *zap.SugaredLogger) *consoleHost {
	return &consoleHost{
		out:    out,
		log:    log,
		queued: make(map[roundtrip.SelectionKind]formstate.Selection),
	}
}

func (h *consoleHost) attach(coord *roundtrip.Coordinator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.coord = coord
}

// queue sets the selection the next picker of kind answers with.
func (h *consoleHost) queue(kind roundtrip.SelectionKind, sel formstate.Selection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queued[kind] = sel.Clone()
}

func (h *consoleHost) NavigateTo(_ context.Context, screen string, params roundtrip.Params) error {
	channel, _ := params[roundtrip.ParamReturnChannel].(string)
	kindName, _ := params[roundtrip.ParamSelectionType].(string)
	field, _ := params[roundtrip.ParamFieldName].(string)
	kind := roundtrip.SelectionKind(kindName)

	h.mu.Lock()
	coord := h.coord
	sel, ok := h.queued[kind]
	delete(h.queued, kind)
	h.mu.Unlock()

	if coord == nil {
		return errNoCoordinator
	}
	if !ok {
		sel = initialSelection(params)
	}

	h.log.Debugw("picker opened", "screen", screen, "field", field, "entries", len(sel))
	fmt.Fprintf(h.out, "%s: %d selected for %s\n", screen, len(sel), field)

	return coord.Deliver(channel, roundtrip.Result{Kind: kind, FieldName: field, Selection: sel})
}

func (h *consoleHost) GoBack(_ context.Context, params roundtrip.Params) error {
	h.mu.Lock()
	h.backs++
	h.mu.Unlock()

	h.log.Debugw("navigating back", "params", params)

	return nil
}

func (h *consoleHost) ScrollTo(_ context.Context, offset float64) error {
	h.log.Debugw("scroll restored", "offset", offset)

	return nil
}

// initialSelection keeps what the form had when nothing was queued.
func initialSelection(params roundtrip.Params) formstate.Selection {
	sel, _ := params[roundtrip.ParamInitialSelection].(formstate.Selection)

	return sel
}
