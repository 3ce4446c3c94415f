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

// Package roundtrip coordinates excursions to a picker screen: it saves the
// engine state before departure, hands the picker a return channel, and
// releases the picker's result exactly once when the form comes back.
package roundtrip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	looplab "github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/actionform/internal/fsm"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formstate"
	"github.com/united-manufacturing-hub/actionform/pkg/logger"
	"github.com/united-manufacturing-hub/actionform/pkg/metrics"
)

const (
	StateIdle      = "idle"
	StateDeparting = "departing"
	StateReturned  = "returned"
	StateRestoring = "restoring"

	EventDepart  = "depart"
	EventReturn  = "return"
	EventRestore = "restore"
	EventDone    = "done"
	EventAbandon = "abandon"
)

// Screen ids of the pickers.
const (
	ScreenMachinePicker = "MachinePicker"
	ScreenUserPicker    = "UserPicker"
)

// Navigation parameter keys handed to the picker.
const (
	ParamInitialSelection = "initialSelection"
	ParamReturnChannel    = "returnChannel"
	ParamSelectionType    = "selectionType"
	ParamFieldName        = "fieldName"
	ParamMultiSelect      = "multiSelect"
	ParamMachineID        = "machineId"
)

const (
	DefaultScrollAttempts = 5
	DefaultScrollBackoff  = 120 * time.Millisecond
)

var (
	ErrRoundTripInFlight = errors.New("a picker round trip is already in flight")
	ErrUnknownChannel    = errors.New("no picker is waiting on this return channel")
	ErrAlreadyProcessed  = errors.New("picker result was already processed")
	ErrCancelled         = errors.New("picker round trip was cancelled")
)

// SelectionKind says which selection set a picker result belongs to.
type SelectionKind string

const (
	KindNone         SelectionKind = ""
	KindMachines     SelectionKind = "machines"
	KindRelatedUsers SelectionKind = "related-users"
	KindAssignedUser SelectionKind = "assigned-user"
)

// Screen returns the picker screen serving this kind.
func (k SelectionKind) Screen() string {
	if k == KindMachines {
		return ScreenMachinePicker
	}

	return ScreenUserPicker
}

// Params are navigation parameters.
type Params map[string]any

// Navigator is the host's screen transition primitive.
type Navigator interface {
	NavigateTo(ctx context.Context, screen string, params Params) error
}

// Scroller scrolls the form. It returns an error while the layout is not
// ready to honour the offset.
type Scroller interface {
	ScrollTo(ctx context.Context, offset float64) error
}

// Request describes one picker departure.
type Request struct {
	Kind             SelectionKind
	FieldName        string
	InitialSelection formstate.Selection
	Snapshot         Snapshot
	// MachineID scopes user pickers to the first selected machine.
	MachineID int
}

// Result is what a picker writes back on its return channel. Kind may be
// empty for pickers that do not echo the selection type.
type Result struct {
	Kind      SelectionKind
	FieldName string
	Selection formstate.Selection
}

// Return is a consumed result together with the snapshot taken on departure.
type Return struct {
	Channel  string
	Kind     SelectionKind
	Result   Result
	Snapshot *Snapshot
	// Abandoned is set when the picker closed without a result.
	Abandoned bool
}

// Handle resolves once the picker delivers or the round trip ends without a
// result.
type Handle struct {
	Channel string
	Kind    SelectionKind

	done   chan struct{}
	once   sync.Once
	result Result
	err    error
}

func newHandle(channel string, kind SelectionKind) *Handle {
	return &Handle{Channel: channel, Kind: kind, done: make(chan struct{})}
}

func (h *Handle) resolve(res Result, err error) {
	h.once.Do(func() {
		h.result = res
		h.err = err
		close(h.done)
	})
}

// Done is closed when the handle resolves.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Await blocks until the picker delivers, the round trip is abandoned or
// cancelled, or ctx ends.
func (h *Handle) Await(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Options tune the scroll restoration.
type Options struct {
	ScrollAttempts int
	ScrollBackoff  time.Duration
}

// Coordinator owns the single snapshot slot of one form instance. Only one
// round trip may be in flight at a time.
type Coordinator struct {
	mu sync.Mutex

	machine *fsm.Instance
	nav     Navigator
	opts    Options
	log     *zap.SugaredLogger

	snapshot   *Snapshot
	handle     *Handle
	templateID int
	result     *Result
	processed  string
}

func NewCoordinator(nav Navigator, opts Options, log *zap.SugaredLogger) *Coordinator {
	if opts.ScrollAttempts <= 0 {
		opts.ScrollAttempts = DefaultScrollAttempts
	}
	if opts.ScrollBackoff <= 0 {
		opts.ScrollBackoff = DefaultScrollBackoff
	}
	if log == nil {
		log = logger.For(logger.ComponentRoundTrip)
	}

	c := &Coordinator{nav: nav, opts: opts, log: log}
	c.machine = fsm.New(fsm.Config{
		ID:           "picker-roundtrip",
		InitialState: StateIdle,
		Transitions: []looplab.EventDesc{
			{Name: EventDepart, Src: []string{StateIdle}, Dst: StateDeparting},
			{Name: EventReturn, Src: []string{StateDeparting}, Dst: StateReturned},
			{Name: EventRestore, Src: []string{StateReturned}, Dst: StateRestoring},
			{Name: EventDone, Src: []string{StateRestoring}, Dst: StateIdle},
			{Name: EventAbandon, Src: []string{StateDeparting}, Dst: StateIdle},
		},
	}, log)

	return c
}

// State returns the current round-trip state.
func (c *Coordinator) State() string {
	return c.machine.Current()
}

// InFlight reports whether a round trip has started and not yet finished.
func (c *Coordinator) InFlight() bool {
	return !c.machine.Is(StateIdle)
}

// PendingTemplateID returns the template id saved on departure while a
// round trip is in flight.
func (c *Coordinator) PendingTemplateID() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.Is(StateIdle) || c.machine.Is(StateRestoring) {
		return 0, false
	}

	return c.templateID, true
}

// Depart saves the snapshot and navigates to the picker. A second departure
// while a round trip is in flight is rejected.
func (c *Coordinator) Depart(ctx context.Context, req Request) (*Handle, error) {
	c.mu.Lock()
	if !c.machine.Is(StateIdle) {
		state := c.machine.Current()
		c.mu.Unlock()
		metrics.IncRoundTrip(string(req.Kind), metrics.OutcomeRejected)

		return nil, fmt.Errorf("%w (state %s)", ErrRoundTripInFlight, state)
	}

	snap, err := req.Snapshot.Clone()
	if err != nil {
		c.mu.Unlock()

		return nil, err
	}
	if err := c.machine.SendEvent(ctx, EventDepart); err != nil {
		c.mu.Unlock()

		return nil, err
	}

	h := newHandle(uuid.NewString(), req.Kind)
	c.snapshot = snap
	c.templateID = snap.SelectedTemplateID
	c.handle = h
	c.result = nil
	c.mu.Unlock()

	params := Params{
		ParamInitialSelection: req.InitialSelection.Clone(),
		ParamReturnChannel:    h.Channel,
		ParamSelectionType:    string(req.Kind),
		ParamFieldName:        req.FieldName,
		ParamMultiSelect:      req.Kind != KindAssignedUser,
	}
	if req.MachineID > 0 {
		params[ParamMachineID] = req.MachineID
	}

	c.log.Debugw("departing to picker", "screen", req.Kind.Screen(), "channel", h.Channel, "field", req.FieldName)
	if err := c.nav.NavigateTo(ctx, req.Kind.Screen(), params); err != nil {
		c.abandon(h, fmt.Errorf("navigation to %s failed: %w", req.Kind.Screen(), err))
		metrics.IncRoundTrip(string(req.Kind), metrics.OutcomeFailure)

		return nil, err
	}

	return h, nil
}

// Deliver is called by the picker with its result. Results for unknown or
// already processed channels are ignored and reported as errors.
func (c *Coordinator) Deliver(channel string, res Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if channel != "" && channel == c.processed {
		return ErrAlreadyProcessed
	}
	if c.handle == nil || c.handle.Channel != channel || !c.machine.Is(StateDeparting) {
		c.log.Debugw("ignoring picker result", "channel", channel, "state", c.machine.Current())

		return ErrUnknownChannel
	}

	if err := c.machine.SendEvent(context.Background(), EventReturn); err != nil {
		return err
	}

	if res.Kind == KindNone {
		res.Kind = c.handle.Kind
	}
	stored := res
	stored.Selection = res.Selection.Clone()
	c.result = &stored
	c.handle.resolve(stored, nil)

	return nil
}

// TakeReturn consumes the delivered result and its snapshot exactly once;
// later calls return false until the next round trip. Focus while the
// picker has not delivered means it was dismissed: the round trip ends and
// the snapshot is handed back with Abandoned set.
func (c *Coordinator) TakeReturn(ctx context.Context) (*Return, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.machine.Current() {
	case StateDeparting:
		h := c.handle
		ret := &Return{Snapshot: c.snapshot, Abandoned: true}
		if h != nil {
			ret.Channel = h.Channel
			ret.Kind = h.Kind
		}
		c.clearLocked()
		if err := c.machine.SendEvent(ctx, EventAbandon); err != nil {
			c.machine.SetState(StateIdle)
		}
		if h != nil {
			h.resolve(Result{}, ErrCancelled)
		}
		metrics.IncRoundTrip(string(ret.Kind), metrics.OutcomeAbandoned)

		return ret, ret.Snapshot != nil
	case StateReturned:
	default:
		return nil, false
	}

	if c.result == nil {
		return nil, false
	}

	ret := &Return{
		Channel:  c.handle.Channel,
		Kind:     c.result.Kind,
		Result:   *c.result,
		Snapshot: c.snapshot,
	}
	c.processed = c.handle.Channel
	c.clearLocked()

	if err := c.machine.SendEvent(ctx, EventRestore); err != nil {
		c.log.Warnw("failed to enter restoring state", "error", err)
		c.machine.SetState(StateRestoring)
	}
	metrics.IncRoundTrip(string(ret.Kind), metrics.OutcomeReturned)

	return ret, true
}

// RestoreScroll asks the scroller for the saved offset until it succeeds or
// the attempts run out. Giving up is silent. The coordinator is idle
// afterwards regardless of the outcome.
func (c *Coordinator) RestoreScroll(ctx context.Context, scroller Scroller, offset float64) bool {
	defer c.finishRestore()

	if scroller == nil {
		return false
	}

	attempts, ok := restoreScroll(ctx, scroller, offset, c.opts.ScrollAttempts, c.opts.ScrollBackoff)
	metrics.ObserveScrollAttempts(attempts)
	if !ok {
		c.log.Debugw("scroll restoration gave up", "offset", offset, "attempts", attempts)
	}

	return ok
}

func (c *Coordinator) finishRestore() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.machine.Is(StateRestoring) {
		return
	}
	if err := c.machine.SendEvent(context.Background(), EventDone); err != nil {
		c.machine.SetState(StateIdle)
	}
}

// Cancel drops any pending round trip, its snapshot and result, and returns
// to idle. Waiters receive ErrCancelled.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.handle
	c.clearLocked()
	c.machine.SetState(StateIdle)
	if h != nil {
		h.resolve(Result{}, ErrCancelled)
	}
}

// ResetProcessed forgets which return channel was consumed last.
func (c *Coordinator) ResetProcessed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed = ""
}

func (c *Coordinator) abandon(h *Handle, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == h {
		c.clearLocked()
		c.machine.SetState(StateIdle)
	}
	h.resolve(Result{}, cause)
}

func (c *Coordinator) clearLocked() {
	c.snapshot = nil
	c.handle = nil
	c.result = nil
	c.templateID = 0
}
