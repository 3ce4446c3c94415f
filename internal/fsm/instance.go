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

// Package fsm wraps looplab/fsm with per-state enter callbacks and a context
// guard on events.
package fsm

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

type Config struct {
	ID           string
	InitialState string
	Transitions  []fsm.EventDesc
}

// Instance is a named state machine. It is safe for concurrent use.
type Instance struct {
	cfg Config

	mu        sync.RWMutex
	callbacks map[string]fsm.Callback

	fsm    *fsm.FSM
	logger *zap.SugaredLogger
}

func New(cfg Config, logger *zap.SugaredLogger) *Instance {
	inst := &Instance{
		cfg:       cfg,
		callbacks: make(map[string]fsm.Callback),
		logger:    logger,
	}

	inst.fsm = fsm.NewFSM(
		cfg.InitialState,
		fsm.Events(cfg.Transitions),
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				inst.logger.Debugf("FSM %s: %s -> %s (%s)", inst.cfg.ID, e.Src, e.Dst, e.Event)

				inst.mu.RLock()
				cb, ok := inst.callbacks["enter_"+e.Dst]
				inst.mu.RUnlock()
				if ok {
					cb(ctx, e)
				}
			},
		},
	)

	return inst
}

// AddCallback registers cb for "enter_<state>". Callbacks must not send
// events to the same instance.
func (i *Instance) AddCallback(name string, cb fsm.Callback) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.callbacks[name] = cb
}

func (i *Instance) ID() string {
	return i.cfg.ID
}

func (i *Instance) Current() string {
	return i.fsm.Current()
}

func (i *Instance) Is(state string) bool {
	return i.fsm.Is(state)
}

func (i *Instance) Can(event string) bool {
	return i.fsm.Can(event)
}

// SetState forces the state without running callbacks.
func (i *Instance) SetState(state string) {
	i.fsm.SetState(state)
}

// SendEvent fires an event. An already cancelled context fails fast so a
// transition is never half-applied.
func (i *Instance) SendEvent(ctx context.Context, event string, args ...interface{}) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := i.fsm.Event(ctx, event, args...); err != nil {
		return fmt.Errorf("FSM %s: event %q from %q failed: %w", i.cfg.ID, event, i.fsm.Current(), err)
	}

	return nil
}
