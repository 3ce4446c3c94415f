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
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
	"github.com/united-manufacturing-hub/actionform/pkg/logger"
	"github.com/united-manufacturing-hub/actionform/pkg/metrics"
	"github.com/united-manufacturing-hub/actionform/pkg/sentry"
)

// ListTemplates lists the templates the user can pick from.
func (e *Engine) ListTemplates(ctx context.Context) ([]template.Summary, error) {
	list, err := e.deps.Templates.ListTemplates(ctx)
	if err != nil {
		metrics.IncFetchError("templates")
		sentry.ReportFetchError(logger.For(logger.ComponentLifecycle), "templates", 0, err)

		return nil, formerror.NewFetch("templates", err)
	}

	return list, nil
}

// SelectTemplate activates a template. Picking a different template starts
// a fresh form. Picking the template a picker round trip departed from
// restores instead: values and selections are kept and only the pending
// picker result is applied. Re-picking the active template with nothing
// pending keeps the form as it is, and re-picking the template of a restore
// whose fetch failed retries that fetch without touching the values.
func (e *Engine) SelectTemplate(ctx context.Context, id int) error {
	if pending, ok := e.coord.PendingTemplateID(); ok && pending == id {
		e.coord.ResetProcessed()
		if _, err := e.OnFocus(ctx); err != nil {
			return err
		}

		return nil
	}

	e.mu.Lock()
	same := e.tpl != nil && e.tpl.ID == id && e.editID == 0
	restoring := e.tpl == nil && e.restoreID == id && id > 0
	gen := e.generation
	e.mu.Unlock()
	if restoring && !e.coord.InFlight() {
		return e.finishRestore(ctx, gen, id)
	}
	if same && !e.coord.InFlight() {
		e.coord.ResetProcessed()

		return nil
	}

	return e.selectFresh(ctx, id)
}

func (e *Engine) selectFresh(ctx context.Context, id int) error {
	log := logger.For(logger.ComponentLifecycle)

	e.coord.Cancel()
	e.coord.ResetProcessed()
	gen := e.beginGeneration(func() {
		e.store.Reset(nil)
		e.store.ClearSelections()
	})

	tpl, err := e.loadTemplate(ctx, id)
	if !e.current(gen) {
		metrics.IncStaleResult("template")

		return ErrSuperseded
	}
	if err != nil {
		metrics.IncFetchError("template")
		sentry.ReportFetchError(log, "template", id, err)
		fetchErr := formerror.NewFetch("template", err)
		e.setSectionError(SectionTemplate, fetchErr)

		return fetchErr
	}

	idx := classifier.NewIndex(tpl)
	e.mu.Lock()
	username := e.username
	e.mu.Unlock()

	defaults := formstate.Defaults(tpl, idx, e.opts.Now(), username)
	if !e.commit(gen, func() {
		e.tpl = tpl
		e.index = idx
		e.store.Reset(defaults)
	}) {
		metrics.IncStaleResult("template")

		return ErrSuperseded
	}
	log.Infow("template selected", "template", tpl.ID, "fields", len(tpl.Fields))
	for _, c := range idx.Conflicts() {
		log.Warnw("field shadowed by an earlier field with the same role",
			"template", tpl.ID, "role", c.Role.String(), "field", c.Shadow, "wired", c.Winner)
	}

	e.loadCatalogs(ctx, gen, tpl, idx)
	e.fillCreatedBy(ctx, gen, idx)

	if !e.current(gen) {
		return ErrSuperseded
	}

	return nil
}

// beginGeneration invalidates every outstanding fetch and clears the
// engine-level state of the previous form. seed, if set, writes the first
// state of the new form before any other generation can start.
func (e *Engine) beginGeneration(seed func()) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++
	e.tpl = nil
	e.index = nil
	e.actionName = ""
	e.editID = 0
	e.categories = nil
	e.statuses = nil
	e.labels = nil
	e.eligible = nil
	e.eligibleFor = 0
	e.sectionErrors = make(map[string]string)
	e.restoreID = 0
	if seed != nil {
		seed()
	}

	return e.generation
}

// loadCatalogs fetches the option lists the template needs. Each list fails
// on its own without affecting the others.
func (e *Engine) loadCatalogs(ctx context.Context, gen uint64, tpl *template.Template, idx *classifier.Index) {
	var g errgroup.Group
	if idx.HasRole(classifier.RoleCategory) {
		g.Go(func() error {
			cats, err := e.deps.Catalog.ListCategories(ctx, tpl.Name)
			e.publishCatalog(gen, SectionCategories, err, func() { e.categories = cats })

			return nil
		})
	}
	if idx.HasRole(classifier.RoleStatus) {
		g.Go(func() error {
			statuses, err := e.deps.Catalog.ListStatuses(ctx)
			e.publishCatalog(gen, SectionStatuses, err, func() { e.statuses = statuses })

			return nil
		})
	}
	if idx.HasRole(classifier.RoleLabel) {
		g.Go(func() error {
			labels, err := e.deps.Catalog.ListLabels(ctx, e.opts.ClientID)
			e.publishCatalog(gen, SectionLabels, err, func() { e.labels = labels })

			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) publishCatalog(gen uint64, section string, err error, apply func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.generation != gen {
		metrics.IncStaleResult(section)

		return
	}
	if err != nil {
		metrics.IncFetchError(section)
		e.sectionErrors[section] = formerror.UserMessage(formerror.NewFetch(section, err))
		e.log.Warnw("failed to load section", "section", section, "error", err)

		return
	}
	delete(e.sectionErrors, section)
	apply()
}

// fillCreatedBy fills an empty created-by field once the username is known.
func (e *Engine) fillCreatedBy(ctx context.Context, gen uint64, idx *classifier.Index) {
	field, ok := idx.FieldForRole(classifier.RoleCreatedBy)
	if !ok || e.deps.Identity == nil {
		return
	}

	e.mu.Lock()
	username := e.username
	e.mu.Unlock()

	if username == "" {
		name, err := e.deps.Identity.CurrentUsername(ctx)
		if err != nil {
			metrics.IncFetchError(SectionIdentity)
			e.log.Debugw("username not available", "error", err)
			if e.current(gen) {
				e.setSectionError(SectionIdentity, formerror.NewFetch("user name", err))
			}

			return
		}
		username = name
		e.mu.Lock()
		e.username = name
		e.mu.Unlock()
	}

	if username == "" {
		return
	}
	e.commit(gen, func() {
		if v, ok := e.store.Get(field); !ok || v.IsEmpty() {
			e.store.Set(field, formvalue.Text(username))
		}
	})
}
