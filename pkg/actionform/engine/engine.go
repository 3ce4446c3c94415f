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

// Package engine drives a server-defined action form: it loads templates,
// keeps dependent selections consistent, coordinates picker round trips and
// submits the result.
package engine

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/classifier"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formerror"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formstate"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/roundtrip"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
	"github.com/united-manufacturing-hub/actionform/pkg/config"
	"github.com/united-manufacturing-hub/actionform/pkg/logger"
	"github.com/united-manufacturing-hub/actionform/pkg/metrics"
	"github.com/united-manufacturing-hub/actionform/pkg/models"
)

// ActionNameField is the field holding the action's name.
const ActionNameField = "Name"

// Sections carrying their own load error.
const (
	SectionTemplate   = "template"
	SectionCategories = "categories"
	SectionStatuses   = "statuses"
	SectionLabels     = "labels"
	SectionUsers      = "users"
	SectionDetail     = "detail"
	SectionIdentity   = "identity"
)

// ErrSuperseded is returned by an operation whose results were dropped
// because a newer template selection started meanwhile.
var ErrSuperseded = errors.New("superseded by a newer template selection")

type Options struct {
	PlantID          int
	ClientID         int
	ShiftMode        string
	TemplateCacheTTL time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig maps the client configuration onto engine options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		PlantID:          cfg.Plant.PlantID,
		ClientID:         cfg.Plant.ClientID,
		ShiftMode:        cfg.Engine.ShiftMode,
		TemplateCacheTTL: cfg.Engine.TemplateCacheTTL,
	}
}

// Engine is one form instance. All methods are safe for concurrent use; the
// engine lock is never held across a network call, so edits stay possible
// while fetches are outstanding.
type Engine struct {
	deps  Dependencies
	opts  Options
	log   *zap.SugaredLogger
	store *formstate.Store
	coord *roundtrip.Coordinator

	templates *expiremap.ExpireMap[int, *template.Template]
	flight    singleflight.Group

	mu            sync.Mutex
	generation    uint64
	tpl           *template.Template
	index         *classifier.Index
	actionName    string
	editID        int
	username      string
	categories    []models.Option
	statuses      []models.Option
	labels        []models.Option
	eligible      []models.User
	eligibleFor   int
	sectionErrors map[string]string
	submitting    bool
	// restoreID is the template of a restored form whose template fetch
	// failed; selecting it again finishes the restore without a reset.
	restoreID int
}

func New(deps Dependencies, opts Options, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = logger.For(logger.ComponentEngine)
	}
	if opts.ShiftMode == "" {
		opts.ShiftMode = config.DefaultShiftMode
	}
	if opts.TemplateCacheTTL <= 0 {
		opts.TemplateCacheTTL = config.DefaultTemplateCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	coord := deps.Coordinator
	if coord == nil {
		coord = roundtrip.NewCoordinator(deps.Navigator, roundtrip.Options{}, nil)
	}

	return &Engine{
		deps:          deps,
		opts:          opts,
		log:           log,
		store:         formstate.NewStore(),
		coord:         coord,
		templates:     expiremap.NewEx[int, *template.Template](opts.TemplateCacheTTL, opts.TemplateCacheTTL),
		sectionErrors: make(map[string]string),
	}
}

// Coordinator returns the round-trip coordinator, for pickers to deliver
// their results to.
func (e *Engine) Coordinator() *roundtrip.Coordinator {
	return e.coord
}

// loadTemplate returns the template detail, fetching it at most once per id
// for the session.
func (e *Engine) loadTemplate(ctx context.Context, id int) (*template.Template, error) {
	if cached, ok := e.templates.Load(id); ok && cached != nil {
		return *cached, nil
	}

	v, err, _ := e.flight.Do(strconv.Itoa(id), func() (interface{}, error) {
		tpl, err := e.deps.Templates.GetTemplateDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		e.templates.Set(id, tpl)

		return tpl, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*template.Template), nil
}

// commit runs apply under the engine lock if gen is still the active
// generation and reports whether it ran. A newer generation cannot start
// while apply writes the store. apply must not call locking engine methods.
func (e *Engine) commit(gen uint64, apply func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.generation != gen {
		return false
	}
	apply()

	return true
}

// current reports whether gen is still the active generation.
func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.generation == gen
}

func (e *Engine) active() (*template.Template, *classifier.Index, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tpl, e.index, e.generation
}

func (e *Engine) setSectionError(section string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil {
		delete(e.sectionErrors, section)

		return
	}
	e.sectionErrors[section] = formerror.UserMessage(err)
}

// Template returns the active template, or nil.
func (e *Engine) Template() *template.Template {
	tpl, _, _ := e.active()

	return tpl
}

// Fields returns the visible fields in render order.
func (e *Engine) Fields() []template.FieldDescriptor {
	_, idx, _ := e.active()
	if idx == nil {
		return nil
	}

	return idx.Ordered()
}

// Role returns the semantic role of a field of the active template.
func (e *Engine) Role(field string) classifier.Role {
	_, idx, _ := e.active()
	if idx == nil {
		return classifier.RolePlainText
	}

	return idx.Role(field)
}

// FieldFor returns the visible field carrying role in the active template.
func (e *Engine) FieldFor(role classifier.Role) (string, bool) {
	_, idx, _ := e.active()
	if idx == nil {
		return "", false
	}

	return idx.FieldForRole(role)
}

func (e *Engine) Get(field string) (formvalue.Value, bool) {
	return e.store.Get(field)
}

// Set replaces a field value. Setting the action name field also updates
// the action name.
func (e *Engine) Set(field string, v formvalue.Value) {
	if field == ActionNameField {
		e.mu.Lock()
		e.actionName = v.String()
		e.mu.Unlock()
	}
	e.store.Set(field, v)
}

// Values returns a copy of every field value.
func (e *Engine) Values() map[string]formvalue.Value {
	return e.store.Values()
}

func (e *Engine) SetActionName(name string) {
	e.mu.Lock()
	e.actionName = name
	declared := e.tpl != nil
	if declared {
		_, declared = e.tpl.Field(ActionNameField)
	}
	e.mu.Unlock()

	if declared {
		e.store.Set(ActionNameField, formvalue.Text(name))
	}
}

func (e *Engine) ActionName() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.actionName
}

// AddAttachment appends a pending attachment to an upload field and returns
// its key.
func (e *Engine) AddAttachment(field, sourceURI, displayName, mimeType string, origin formvalue.Origin) (string, error) {
	a := formvalue.NewAttachment(sourceURI, displayName, mimeType, origin)
	if err := e.store.AddAttachment(field, a); err != nil {
		return "", err
	}

	return a.Key, nil
}

func (e *Engine) RemoveAttachment(field, key string) error {
	return e.store.RemoveAttachment(field, key)
}

func (e *Engine) Attachments(field string) ([]formvalue.Attachment, error) {
	return e.store.Attachments(field)
}

func (e *Engine) Machines() formstate.Selection {
	return e.store.Machines()
}

func (e *Engine) RelatedUsers() formstate.Selection {
	return e.store.RelatedUsers()
}

func (e *Engine) AssignedUser() (formstate.Ref, bool) {
	return e.store.AssignedUsers().First()
}

func (e *Engine) ShiftOptions() []formstate.ShiftOption {
	return e.store.ShiftOptions()
}

func (e *Engine) Categories() []models.Option {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]models.Option(nil), e.categories...)
}

func (e *Engine) Statuses() []models.Option {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]models.Option(nil), e.statuses...)
}

func (e *Engine) Labels() []models.Option {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]models.Option(nil), e.labels...)
}

// FieldError returns the field-local message of a failed dependent fetch.
func (e *Engine) FieldError(field string) string {
	return e.store.FieldError(field)
}

// SectionError returns the message of a failed section load.
func (e *Engine) SectionError(section string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sectionErrors[section]
}

// IsEditMode reports whether the form edits an existing record.
func (e *Engine) IsEditMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.editID > 0
}

// ListMachines lists the machines of the configured plant for a picker.
func (e *Engine) ListMachines(ctx context.Context) ([]models.Machine, error) {
	machines, err := e.deps.Machines.ListMachinesForPlant(ctx, e.opts.PlantID)
	if err != nil {
		metrics.IncFetchError("machines")

		return nil, formerror.NewFetch("machines", err)
	}

	return machines, nil
}
