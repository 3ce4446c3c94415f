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
	"strconv"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/classifier"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formerror"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formstate"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
	"github.com/united-manufacturing-hub/actionform/pkg/logger"
	"github.com/united-manufacturing-hub/actionform/pkg/metrics"
	"github.com/united-manufacturing-hub/actionform/pkg/models"
	"github.com/united-manufacturing-hub/actionform/pkg/sentry"
)

// Keys of the list-row projection of an action.
const (
	RowIDKey          = "Id"
	RowTypeIDKey      = "TypeId"
	RowMachineIDKey   = "MachineId"
	RowMachineNameKey = "MachineName"
)

// UnknownUserName is shown for a stored user reference that cannot be
// resolved at all.
const UnknownUserName = "Unknown user"

// OpenForEdit opens the form against an existing action. The list row is
// applied immediately; the full record is fetched afterwards and only fills
// fields the row did not carry. A failed detail fetch keeps the row values
// and records a section error instead of failing.
func (e *Engine) OpenForEdit(ctx context.Context, row models.Record) error {
	log := logger.For(logger.ComponentLifecycle)

	id, ok := formvalue.FromAny(row[RowIDKey]).IntValue()
	if !ok || id <= 0 {
		return formerror.NewValidation(RowIDKey, "The action to edit has no id")
	}

	seed := make(map[string]formvalue.Value, len(row))
	for k, v := range row {
		seed[k] = formvalue.FromAny(v)
	}

	e.coord.Cancel()
	e.coord.ResetProcessed()
	gen := e.beginGeneration(func() {
		e.store.Reset(seed)
		e.store.ClearSelections()
		if m, ok := machineFromRow(row); ok {
			e.store.SetMachines(formstate.Selection{m})
		}
		e.editID = id
		e.actionName = seed[ActionNameField].String()
	})

	detail, err := e.deps.Records.GetActionDetail(ctx, id)
	if !e.current(gen) {
		metrics.IncStaleResult(SectionDetail)

		return ErrSuperseded
	}
	if err != nil {
		metrics.IncFetchError(SectionDetail)
		sentry.ReportFetchError(log, SectionDetail, 0, err)
		e.setSectionError(SectionDetail, formerror.NewFetch("action details", err))

		return nil
	}

	if !e.commit(gen, func() {
		for k, v := range detail {
			e.store.SetIfAbsent(k, formvalue.FromAny(v))
		}
		if e.actionName == "" {
			if v, ok := e.store.Get(ActionNameField); ok {
				e.actionName = v.String()
			}
		}
		if len(e.store.Machines()) == 0 {
			if m, ok := machineFromRow(detail); ok {
				e.store.SetMachines(formstate.Selection{m})
			}
		}
	}) {
		metrics.IncStaleResult(SectionDetail)

		return ErrSuperseded
	}

	typeVal, _ := e.store.Get(RowTypeIDKey)
	templateID, ok := typeVal.IntValue()
	if !ok || templateID <= 0 {
		log.Debugw("edited action carries no template id", "action", id)

		return nil
	}

	return e.hydrateTemplate(ctx, gen, templateID)
}

// hydrateTemplate loads the template of an edited record without resetting
// its values, then resolves stored machine and user references.
func (e *Engine) hydrateTemplate(ctx context.Context, gen uint64, templateID int) error {
	tpl, err := e.loadTemplate(ctx, templateID)
	if !e.current(gen) {
		metrics.IncStaleResult(SectionTemplate)

		return ErrSuperseded
	}
	if err != nil {
		metrics.IncFetchError(SectionTemplate)
		e.setSectionError(SectionTemplate, formerror.NewFetch("template", err))

		return nil
	}

	idx := classifier.NewIndex(tpl)
	e.mu.Lock()
	username := e.username
	e.mu.Unlock()

	defaults := formstate.Defaults(tpl, idx, e.opts.Now(), username)
	if !e.commit(gen, func() {
		e.tpl = tpl
		e.index = idx
		for field, v := range defaults {
			e.store.SetIfAbsent(field, v)
		}
		if field, ok := idx.FieldForRole(classifier.RoleRelatedMachines); ok {
			if v, ok := e.store.Get(field); ok {
				if sel, err := formstate.ParseSelection(v.Text); err == nil && len(sel) > 0 {
					e.store.SetMachines(sel)
				}
			}
		}
	}) {
		metrics.IncStaleResult(SectionTemplate)

		return ErrSuperseded
	}

	e.loadCatalogs(ctx, gen, tpl, idx)

	if first, ok := e.store.Machines().First(); ok {
		e.refreshShifts(ctx, gen, first.ID)
		users, err := e.fetchEligibleUsers(ctx, gen, first.ID)
		if err != nil {
			users = nil
		}
		if !e.commit(gen, func() {
			e.resolveUsers(idx, users)
			e.projectInto(idx)
		}) {
			return ErrSuperseded
		}
	}

	return nil
}

// resolveUsers turns the stored assignee and related-user ids into
// references with display names.
func (e *Engine) resolveUsers(idx *classifier.Index, users []models.User) {
	byID := make(map[int]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	name := func(id int, known string) string {
		if u, ok := byID[id]; ok && u.Label() != "" {
			return u.Label()
		}
		if known != "" {
			return known
		}
		if id > 0 {
			return strconv.Itoa(id)
		}

		return UnknownUserName
	}

	if field, ok := idx.FieldForRole(classifier.RoleAssignedUser); ok {
		if v, ok := e.store.Get(field); ok {
			if id, ok := v.IntValue(); ok && id > 0 {
				e.store.SetAssignedUsers(formstate.Selection{{ID: id, DisplayName: name(id, "")}})
			}
		}
	}

	if field, ok := idx.FieldForRole(classifier.RoleRelatedUsers); ok {
		if v, ok := e.store.Get(field); ok {
			var sel formstate.Selection
			if v.Kind == formvalue.KindText {
				parsed, err := formstate.ParseSelection(v.Text)
				if err == nil {
					sel = parsed
				} else {
					sel = idList(v)
				}
			} else {
				sel = idList(v)
			}
			for i := range sel {
				sel[i].DisplayName = name(sel[i].ID, sel[i].DisplayName)
			}
			e.store.SetRelatedUsers(sel)
		}
	}
}

// idList reads a plain comma separated or single id value.
func idList(v formvalue.Value) formstate.Selection {
	if id, ok := v.IntValue(); ok {
		return formstate.Selection{{ID: id}}
	}

	var sel formstate.Selection
	start := 0
	text := v.Text + ","
	for i := 0; i < len(text); i++ {
		if text[i] != ',' {
			continue
		}
		if id, ok := formvalue.Text(text[start:i]).IntValue(); ok {
			sel = append(sel, formstate.Ref{ID: id})
		}
		start = i + 1
	}

	return sel
}

func machineFromRow(row models.Record) (formstate.Ref, bool) {
	id, ok := formvalue.FromAny(row[RowMachineIDKey]).IntValue()
	if !ok || id <= 0 {
		return formstate.Ref{}, false
	}
	name, _ := row[RowMachineNameKey].(string)

	return formstate.Ref{ID: id, DisplayName: name}, true
}
