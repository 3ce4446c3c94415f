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

// Package formstate holds the current value of every visible field plus the
// auxiliary selection sets that are projected into field values before
// submission. The store has no side effects of its own; dependent updates are
// driven by the engine's resolver.
package formstate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
)

var (
	ErrFieldNotFound      = errors.New("field not found")
	ErrNotAttachmentField = errors.New("field does not hold attachments")
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// Ref is a lightweight reference to a machine or user.
type Ref struct {
	ID          int
	DisplayName string
	Extra       map[string]any
}

// Selection is an ordered set of references.
type Selection []Ref

// IDs returns the ids in selection order.
func (s Selection) IDs() []int {
	ids := make([]int, 0, len(s))
	for _, r := range s {
		ids = append(ids, r.ID)
	}

	return ids
}

// First returns the first reference, if any.
func (s Selection) First() (Ref, bool) {
	if len(s) == 0 {
		return Ref{}, false
	}

	return s[0], true
}

// Contains reports whether a reference with the given id is selected.
func (s Selection) Contains(id int) bool {
	for _, r := range s {
		if r.ID == id {
			return true
		}
	}

	return false
}

// Clone returns a copy that shares no storage with s. A nil selection
// clones to an empty one.
func (s Selection) Clone() Selection {
	if s == nil {
		return Selection{}
	}
	out := make(Selection, len(s))
	for i, r := range s {
		out[i] = r
		if r.Extra != nil {
			out[i].Extra = make(map[string]any, len(r.Extra))
			for k, v := range r.Extra {
				out[i].Extra[k] = v
			}
		}
	}

	return out
}

// ShiftOption is one shift offered for the first selected machine.
type ShiftOption struct {
	ID          int
	DisplayName string
	Type        string
}

// Store is safe for concurrent use. Background fetches publish into it while
// the user keeps editing.
type Store struct {
	mu sync.RWMutex

	values       map[string]formvalue.Value
	machines     Selection
	relatedUsers Selection
	assigned     Selection
	shiftOptions []ShiftOption
	fieldErrors  map[string]string
}

func NewStore() *Store {
	return &Store{
		values:      make(map[string]formvalue.Value),
		fieldErrors: make(map[string]string),
	}
}

// Get returns the value of a field.
func (s *Store) Get(field string) (formvalue.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[field]
	if !ok {
		return formvalue.Value{}, false
	}

	return v.Clone(), true
}

// Set replaces the value of a field.
func (s *Store) Set(field string, v formvalue.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[field] = v.Clone()
}

// SetIfAbsent stores v only when the field has no value yet and reports
// whether it did.
func (s *Store) SetIfAbsent(field string, v formvalue.Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[field]; ok {
		return false
	}
	s.values[field] = v.Clone()

	return true
}

func (s *Store) Delete(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, field)
}

// Reset replaces every value with the given defaults and drops field errors.
func (s *Store) Reset(defaults map[string]formvalue.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]formvalue.Value, len(defaults))
	for k, v := range defaults {
		s.values[k] = v.Clone()
	}
	s.fieldErrors = make(map[string]string)
}

// ClearSelections empties machines, users, the assignee and shift options.
func (s *Store) ClearSelections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machines = nil
	s.relatedUsers = nil
	s.assigned = nil
	s.shiftOptions = nil
}

// Fields returns the names of all fields holding a value, sorted.
func (s *Store) Fields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)

	return names
}

// Values returns a copy of all field values.
func (s *Store) Values() map[string]formvalue.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]formvalue.Value, len(s.values))
	for k, v := range s.values {
		out[k] = v.Clone()
	}

	return out
}

func (s *Store) Machines() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.machines.Clone()
}

func (s *Store) SetMachines(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machines = sel.Clone()
}

func (s *Store) RelatedUsers() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.relatedUsers.Clone()
}

func (s *Store) SetRelatedUsers(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relatedUsers = sel.Clone()
}

// AssignedUsers holds at most one reference in practice.
func (s *Store) AssignedUsers() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.assigned.Clone()
}

func (s *Store) SetAssignedUsers(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assigned = sel.Clone()
}

func (s *Store) ShiftOptions() []ShiftOption {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ShiftOption, len(s.shiftOptions))
	copy(out, s.shiftOptions)

	return out
}

func (s *Store) SetShiftOptions(opts []ShiftOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shiftOptions = make([]ShiftOption, len(opts))
	copy(s.shiftOptions, opts)
}

// SetFieldError records a field-local message shown next to the field.
func (s *Store) SetFieldError(field, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fieldErrors[field] = message
}

func (s *Store) ClearFieldError(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fieldErrors, field)
}

func (s *Store) FieldError(field string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fieldErrors[field]
}

// AddAttachment appends an entry to an attachment-list field, creating the
// list when the field is still unset.
func (s *Store) AddAttachment(field string, a formvalue.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[field]
	if !ok {
		v = formvalue.Attachments()
	}
	if v.Kind != formvalue.KindAttachments {
		return fmt.Errorf("%w: %s", ErrNotAttachmentField, field)
	}
	v = v.Clone()
	v.Attachments = append(v.Attachments, a)
	s.values[field] = v

	return nil
}

func (s *Store) RemoveAttachment(field, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.attachmentsLocked(field)
	if err != nil {
		return err
	}
	for i, a := range list {
		if a.Key == key {
			kept := append(list[:i:i], list[i+1:]...)
			s.values[field] = formvalue.Attachments(kept...)

			return nil
		}
	}

	return fmt.Errorf("%w: %s/%s", ErrAttachmentNotFound, field, key)
}

// UpdateAttachment applies fn to the attachment with the given key. The
// change is kept only when fn succeeds.
func (s *Store) UpdateAttachment(field, key string, fn func(*formvalue.Attachment) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.attachmentsLocked(field)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].Key != key {
			continue
		}
		updated := list[i]
		if err := fn(&updated); err != nil {
			return err
		}
		next := formvalue.Attachments(list...)
		next.Attachments[i] = updated
		s.values[field] = next

		return nil
	}

	return fmt.Errorf("%w: %s/%s", ErrAttachmentNotFound, field, key)
}

// Attachments returns a copy of the entries of an attachment-list field.
func (s *Store) Attachments(field string) ([]formvalue.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.attachmentsLocked(field)
	if err != nil {
		return nil, err
	}

	return formvalue.Attachments(list...).Attachments, nil
}

func (s *Store) attachmentsLocked(field string) ([]formvalue.Attachment, error) {
	v, ok := s.values[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, field)
	}
	if v.Kind != formvalue.KindAttachments {
		return nil, fmt.Errorf("%w: %s", ErrNotAttachmentField, field)
	}

	return v.Attachments, nil
}
