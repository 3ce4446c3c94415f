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

package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/classifier"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formerror"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formstate"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
	"github.com/united-manufacturing-hub/actionform/pkg/logger"
	"github.com/united-manufacturing-hub/actionform/pkg/metrics"
	"github.com/united-manufacturing-hub/actionform/pkg/models"
	"github.com/united-manufacturing-hub/actionform/pkg/sentry"
)

// SetMachines replaces the machine selection and re-derives everything that
// depends on it. Fetch failures stay local to the affected field.
func (e *Engine) SetMachines(ctx context.Context, sel formstate.Selection) {
	previous, _ := e.store.Machines().First()
	e.store.SetMachines(sel)

	first, ok := sel.First()
	if !ok {
		e.store.SetRelatedUsers(nil)
		e.store.SetAssignedUsers(nil)
		e.mu.Lock()
		e.eligible = nil
		e.eligibleFor = 0
		e.mu.Unlock()
		e.clearShift()
		e.projectSelections()

		return
	}

	e.projectSelections()
	if previous.ID == first.ID && e.scopeLoaded(first.ID) {
		return
	}
	e.refreshMachineScope(ctx, first.ID, previous.ID != first.ID)
}

// SetRelatedUsers replaces the related-user selection. Users are scoped to
// the first machine, so a machine must be selected first.
func (e *Engine) SetRelatedUsers(sel formstate.Selection) error {
	if len(sel) > 0 && len(e.store.Machines()) == 0 {
		return formerror.NewValidation(e.fieldFor(classifier.RoleRelatedUsers, "UserIds"), "Please select a machine first")
	}
	e.store.SetRelatedUsers(sel)
	e.projectSelections()

	return nil
}

// SetAssignedUser sets the assignee; nil clears it.
func (e *Engine) SetAssignedUser(ref *formstate.Ref) error {
	if ref == nil {
		e.store.SetAssignedUsers(nil)
		e.projectSelections()

		return nil
	}
	if len(e.store.Machines()) == 0 {
		return formerror.NewValidation(e.fieldFor(classifier.RoleAssignedUser, "AssigneeId"), "Please select a machine first")
	}
	e.store.SetAssignedUsers(formstate.Selection{*ref})
	e.projectSelections()

	return nil
}

// EligibleUsers returns the users of the first selected machine, fetching
// them when they are not cached yet.
func (e *Engine) EligibleUsers(ctx context.Context) ([]models.User, error) {
	first, ok := e.store.Machines().First()
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	if e.eligibleFor == first.ID && e.eligible != nil {
		users := append([]models.User(nil), e.eligible...)
		e.mu.Unlock()

		return users, nil
	}
	gen := e.generation
	e.mu.Unlock()

	users, err := e.fetchEligibleUsers(ctx, gen, first.ID)
	if err != nil {
		return nil, err
	}

	return users, nil
}

// scopeLoaded reports whether the data scoped to machineID is already in
// place and nothing about it failed.
func (e *Engine) scopeLoaded(machineID int) bool {
	e.mu.Lock()
	loaded := e.eligibleFor == machineID && e.eligible != nil
	idx := e.index
	e.mu.Unlock()

	if !loaded || idx == nil {
		return loaded
	}
	if field, ok := idx.FieldForRole(classifier.RoleShift); ok && e.store.FieldError(field) != "" {
		return false
	}

	return true
}

// refreshMachineScope refetches shift options and eligible users for the
// first machine concurrently. When the first machine changed, users that
// are not eligible on it are dropped once its user list is known.
func (e *Engine) refreshMachineScope(ctx context.Context, machineID int, changed bool) {
	_, _, gen := e.active()

	var g errgroup.Group
	g.Go(func() error {
		e.refreshShifts(ctx, gen, machineID)

		return nil
	})
	g.Go(func() error {
		users, err := e.fetchEligibleUsers(ctx, gen, machineID)
		if err == nil && changed {
			e.dropIneligible(gen, machineID, users)
		}

		return nil
	})
	_ = g.Wait()
}

// commitScoped is commit for results that also depend on the first machine.
func (e *Engine) commitScoped(gen uint64, machineID int, apply func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.generation != gen {
		return false
	}
	if first, ok := e.store.Machines().First(); !ok || first.ID != machineID {
		return false
	}
	apply()

	return true
}

// dropIneligible removes related users and the assignee that the first
// machine does not list.
func (e *Engine) dropIneligible(gen uint64, machineID int, users []models.User) {
	eligible := make(map[int]struct{}, len(users))
	for _, u := range users {
		eligible[u.ID] = struct{}{}
	}

	e.commitScoped(gen, machineID, func() {
		related := e.store.RelatedUsers()
		kept := make(formstate.Selection, 0, len(related))
		for _, r := range related {
			if _, ok := eligible[r.ID]; ok {
				kept = append(kept, r)
			}
		}
		if len(kept) != len(related) {
			e.log.Debugw("dropped users not eligible on the machine", "machine", machineID, "dropped", len(related)-len(kept))
			e.store.SetRelatedUsers(kept)
		}
		if a, ok := e.store.AssignedUsers().First(); ok {
			if _, ok := eligible[a.ID]; !ok {
				e.store.SetAssignedUsers(nil)
			}
		}
		e.projectInto(e.index)
	})
}

func (e *Engine) refreshShifts(ctx context.Context, gen uint64, machineID int) {
	_, idx, _ := e.active()
	if idx == nil {
		return
	}
	field, declared := idx.FieldForRole(classifier.RoleShift)
	if !declared {
		return
	}

	shifts, err := e.deps.Machines.ListShiftsForMachine(ctx, machineID, e.opts.ShiftMode)
	if err != nil {
		if !e.commitScoped(gen, machineID, func() {
			e.store.SetFieldError(field, formerror.UserMessage(formerror.NewFetch("shifts", err)))
		}) {
			metrics.IncStaleResult("shifts")

			return
		}
		metrics.IncFetchError("shifts")
		sentry.ReportFetchError(logger.For(logger.ComponentResolver), "shifts", e.templateID(), err)

		return
	}

	opts := make([]formstate.ShiftOption, 0, len(shifts))
	for _, s := range shifts {
		opts = append(opts, formstate.ShiftOption{ID: s.ID, DisplayName: s.DisplayName, Type: s.Type})
	}
	if !e.commitScoped(gen, machineID, func() { e.applyShifts(field, opts) }) {
		metrics.IncStaleResult("shifts")
	}
}

// applyShifts keeps the chosen shift while it is still offered, else picks
// the first option, else clears it.
func (e *Engine) applyShifts(field string, opts []formstate.ShiftOption) {
	e.store.ClearFieldError(field)
	e.store.SetShiftOptions(opts)

	current, _ := e.store.Get(field)
	if id, ok := current.IntValue(); ok {
		for _, o := range opts {
			if o.ID == id {
				return
			}
		}
	}
	if len(opts) > 0 {
		e.store.Set(field, formvalue.Int(opts[0].ID))
	} else {
		e.store.Set(field, formvalue.Text(""))
	}
}

func (e *Engine) fetchEligibleUsers(ctx context.Context, gen uint64, machineID int) ([]models.User, error) {
	users, err := e.deps.Machines.ListUsersForMachine(ctx, machineID)
	if err != nil {
		fetchErr := formerror.NewFetch("users", err)
		if !e.commitScoped(gen, machineID, func() {
			e.sectionErrors[SectionUsers] = formerror.UserMessage(fetchErr)
		}) {
			metrics.IncStaleResult("users")

			return nil, err
		}
		metrics.IncFetchError("users")
		sentry.ReportFetchError(logger.For(logger.ComponentResolver), "users", e.templateID(), err)

		return nil, fetchErr
	}

	if users == nil {
		users = []models.User{}
	}
	if !e.commitScoped(gen, machineID, func() {
		e.eligible = append([]models.User(nil), users...)
		e.eligibleFor = machineID
		delete(e.sectionErrors, SectionUsers)
	}) {
		metrics.IncStaleResult("users")
	}

	return users, nil
}

// clearShift drops shift options and the chosen shift.
func (e *Engine) clearShift() {
	e.store.SetShiftOptions(nil)
	_, idx, _ := e.active()
	if idx == nil {
		return
	}
	if field, ok := idx.FieldForRole(classifier.RoleShift); ok {
		e.store.Set(field, formvalue.Text(""))
		e.store.ClearFieldError(field)
	}
}

// projectSelections re-serializes every selection set into its field. The
// text is rebuilt from scratch each time.
func (e *Engine) projectSelections() {
	_, idx, _ := e.active()
	e.projectInto(idx)
}

func (e *Engine) projectInto(idx *classifier.Index) {
	if idx == nil {
		return
	}

	if field, ok := idx.FieldForRole(classifier.RoleRelatedMachines); ok {
		e.projectSelection(field, e.store.Machines())
	}
	if field, ok := idx.FieldForRole(classifier.RoleRelatedUsers); ok {
		e.projectSelection(field, e.store.RelatedUsers())
	}
	if field, ok := idx.FieldForRole(classifier.RoleAssignedUser); ok {
		if ref, ok := e.store.AssignedUsers().First(); ok {
			e.store.Set(field, formvalue.Int(ref.ID))
		} else {
			e.store.Set(field, formvalue.Text(""))
		}
	}
}

func (e *Engine) projectSelection(field string, sel formstate.Selection) {
	text, err := formstate.SerializeSelection(sel)
	if err != nil {
		e.log.Warnw("failed to project selection", "field", field, "error", err)

		return
	}
	e.store.Set(field, formvalue.Text(text))
}

func (e *Engine) fieldFor(role classifier.Role, fallback string) string {
	_, idx, _ := e.active()
	if idx != nil {
		if field, ok := idx.FieldForRole(role); ok {
			return field
		}
	}

	return fallback
}

func (e *Engine) templateID() int {
	tpl, _, _ := e.active()
	if tpl == nil {
		return 0
	}

	return tpl.ID
}
