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
	"errors"
	"strings"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/classifier"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formerror"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formstate"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/roundtrip"
	"github.com/united-manufacturing-hub/actionform/pkg/logger"
	"github.com/united-manufacturing-hub/actionform/pkg/metrics"
	"github.com/united-manufacturing-hub/actionform/pkg/sentry"
)

// OpenPicker saves the form and navigates to the picker for kind. The form
// may be torn down meanwhile; the result is applied by OnFocus, AwaitPicker
// or a restoring SelectTemplate.
func (e *Engine) OpenPicker(ctx context.Context, kind roundtrip.SelectionKind, field string, scrollOffset float64) (*roundtrip.Handle, error) {
	tpl, _, _ := e.active()
	if tpl == nil {
		return nil, formerror.NewValidation(field, "Please select a template first")
	}

	machines := e.store.Machines()
	var initial formstate.Selection
	switch kind {
	case roundtrip.KindMachines:
		initial = machines
	case roundtrip.KindRelatedUsers:
		initial = e.store.RelatedUsers()
	case roundtrip.KindAssignedUser:
		initial = e.store.AssignedUsers()
	}

	req := roundtrip.Request{
		Kind:             kind,
		FieldName:        field,
		InitialSelection: initial,
		Snapshot:         e.snapshot(scrollOffset),
	}
	if kind != roundtrip.KindMachines {
		first, ok := machines.First()
		if !ok {
			return nil, formerror.NewValidation(field, "Please select a machine first")
		}
		req.MachineID = first.ID
	}

	return e.coord.Depart(ctx, req)
}

// OnFocus applies a pending picker return. It reports whether anything was
// applied; a second focus after the same return is a no-op.
func (e *Engine) OnFocus(ctx context.Context) (bool, error) {
	ret, ok := e.coord.TakeReturn(ctx)
	if !ok {
		return false, nil
	}

	return true, e.applyReturn(ctx, ret)
}

// AwaitPicker blocks until the picker behind h delivers or is dismissed,
// then applies the return like OnFocus.
func (e *Engine) AwaitPicker(ctx context.Context, h *roundtrip.Handle) (bool, error) {
	if _, err := h.Await(ctx); err != nil && !errors.Is(err, roundtrip.ErrCancelled) {
		return false, err
	}

	return e.OnFocus(ctx)
}

func (e *Engine) snapshot(scrollOffset float64) roundtrip.Snapshot {
	e.mu.Lock()
	name := e.actionName
	editID := e.editID
	tplID := 0
	if e.tpl != nil {
		tplID = e.tpl.ID
	}
	e.mu.Unlock()

	return roundtrip.Snapshot{
		FormValues:         e.store.Values(),
		ActionName:         name,
		SelectedMachines:   e.store.Machines(),
		SelectedUsers:      e.store.RelatedUsers(),
		AssignedUser:       e.store.AssignedUsers(),
		SelectedTemplateID: tplID,
		ShiftOptions:       e.store.ShiftOptions(),
		ScrollPosition:     scrollOffset,
		EditID:             editID,
	}
}

// applyReturn restores the snapshot if needed and applies the picker result.
// The round trip ends on every path, including errors.
func (e *Engine) applyReturn(ctx context.Context, ret *roundtrip.Return) error {
	snap := ret.Snapshot
	if snap == nil {
		e.coord.RestoreScroll(ctx, nil, 0)

		return nil
	}

	scroller := e.deps.Scroller
	defer func() {
		e.coord.RestoreScroll(ctx, scroller, snap.ScrollPosition)
	}()

	var restoreErr error
	tpl, _, _ := e.active()
	if tpl == nil || tpl.ID != snap.SelectedTemplateID {
		restoreErr = e.restoreSnapshot(ctx, snap)
		if errors.Is(restoreErr, ErrSuperseded) {
			scroller = nil

			return restoreErr
		}
	}

	if !ret.Abandoned {
		if err := e.applySelection(ctx, ret); err != nil {
			return err
		}
	}

	return restoreErr
}

func (e *Engine) applySelection(ctx context.Context, ret *roundtrip.Return) error {
	switch e.resolveKind(ret) {
	case roundtrip.KindMachines:
		e.SetMachines(ctx, ret.Result.Selection)
	case roundtrip.KindRelatedUsers:
		return e.SetRelatedUsers(ret.Result.Selection)
	case roundtrip.KindAssignedUser:
		var ref *formstate.Ref
		if first, ok := ret.Result.Selection.First(); ok {
			ref = &first
		}

		return e.SetAssignedUser(ref)
	default:
		e.log.Warnw("picker result without a selection type", "field", ret.Result.FieldName)
	}

	return nil
}

// restoreSnapshot rebuilds a remounted form from the departure snapshot
// without resetting it to template defaults. The saved values come back
// first, so a failed template fetch leaves them in place.
func (e *Engine) restoreSnapshot(ctx context.Context, snap *roundtrip.Snapshot) error {
	gen := e.beginGeneration(func() {
		e.actionName = snap.ActionName
		e.editID = snap.EditID
		e.restoreID = snap.SelectedTemplateID
		e.store.Reset(snap.FormValues)
		e.store.SetMachines(snap.SelectedMachines)
		e.store.SetRelatedUsers(snap.SelectedUsers)
		e.store.SetAssignedUsers(snap.AssignedUser)
		e.store.SetShiftOptions(snap.ShiftOptions)
	})

	return e.finishRestore(ctx, gen, snap.SelectedTemplateID)
}

// finishRestore attaches the template to a restored form. On failure the
// form keeps its values and selecting the template again retries.
func (e *Engine) finishRestore(ctx context.Context, gen uint64, templateID int) error {
	tpl, err := e.loadTemplate(ctx, templateID)
	if !e.current(gen) {
		metrics.IncStaleResult(SectionTemplate)

		return ErrSuperseded
	}
	if err != nil {
		metrics.IncFetchError(SectionTemplate)
		sentry.ReportFetchError(logger.For(logger.ComponentLifecycle), SectionTemplate, templateID, err)
		fetchErr := formerror.NewFetch("template", err)
		e.setSectionError(SectionTemplate, fetchErr)

		return fetchErr
	}

	idx := classifier.NewIndex(tpl)
	if !e.commit(gen, func() {
		e.tpl = tpl
		e.index = idx
		e.restoreID = 0
		delete(e.sectionErrors, SectionTemplate)
		e.projectInto(idx)
	}) {
		metrics.IncStaleResult(SectionTemplate)

		return ErrSuperseded
	}

	e.loadCatalogs(ctx, gen, tpl, idx)

	return nil
}

// resolveKind uses the selection type carried by the round trip and falls
// back to the target field when it is missing.
func (e *Engine) resolveKind(ret *roundtrip.Return) roundtrip.SelectionKind {
	if ret.Kind != roundtrip.KindNone {
		return ret.Kind
	}

	field := ret.Result.FieldName
	tpl, idx, _ := e.active()
	role := classifier.RolePlainText
	if idx != nil {
		role = idx.Role(field)
	}
	if role == classifier.RolePlainText {
		desc, _ := tpl.Field(field)
		desc.FieldName = field
		role = classifier.Classify(desc)
	}

	switch role {
	case classifier.RoleRelatedMachines:
		return roundtrip.KindMachines
	case classifier.RoleRelatedUsers:
		return roundtrip.KindRelatedUsers
	case classifier.RoleAssignedUser:
		return roundtrip.KindAssignedUser
	}

	name := strings.ToLower(field)
	switch {
	case strings.Contains(name, "machine") || strings.Contains(name, "thing"):
		return roundtrip.KindMachines
	case strings.Contains(name, "assign"):
		return roundtrip.KindAssignedUser
	case strings.Contains(name, "user"):
		return roundtrip.KindRelatedUsers
	default:
		return roundtrip.KindNone
	}
}
