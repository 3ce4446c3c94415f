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

package classifier

import (
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
)

// Index caches the role of every field of one template.
type Index struct {
	tpl       *template.Template
	roles     map[string]Role
	byRole    map[Role]string
	conflicts []Conflict
}

// Conflict names a visible field whose role is already claimed by an
// earlier field. The later field keeps its role but is never wired.
type Conflict struct {
	Role   Role
	Winner string
	Shadow string
}

// NewIndex classifies every field of tpl. Hidden fields are classified too,
// but only visible fields are reachable through FieldForRole.
func NewIndex(tpl *template.Template) *Index {
	idx := &Index{
		tpl:    tpl,
		roles:  make(map[string]Role),
		byRole: make(map[Role]string),
	}
	if tpl == nil {
		return idx
	}

	for _, f := range tpl.Fields {
		role := Classify(f)
		idx.roles[f.FieldName] = role
		if !f.Visible {
			continue
		}
		winner, taken := idx.byRole[role]
		switch {
		case !taken:
			idx.byRole[role] = f.FieldName
		case role != RolePlainText && role != RoleBoolean:
			idx.conflicts = append(idx.conflicts, Conflict{Role: role, Winner: winner, Shadow: f.FieldName})
		}
	}

	return idx
}

// Conflicts lists single-purpose roles claimed by more than one visible
// field, in declaration order.
func (i *Index) Conflicts() []Conflict {
	return append([]Conflict(nil), i.conflicts...)
}

// Role returns the role of the named field, or plain text for unknown fields.
func (i *Index) Role(field string) Role {
	if role, ok := i.roles[field]; ok {
		return role
	}

	return RolePlainText
}

// HasRole reports whether the template declares a visible field with role.
func (i *Index) HasRole(role Role) bool {
	_, ok := i.byRole[role]

	return ok
}

// FieldForRole returns the first visible field with role.
func (i *Index) FieldForRole(role Role) (string, bool) {
	name, ok := i.byRole[role]

	return name, ok
}

// Ordered returns the visible fields in render order: by declared Order,
// except that the assigned-user field always directly follows the
// related-machines field, since assignment needs a machine context.
func (i *Index) Ordered() []template.FieldDescriptor {
	fields := i.tpl.VisibleFields()

	machinesField, hasMachines := i.FieldForRole(RoleRelatedMachines)
	assignedField, hasAssigned := i.FieldForRole(RoleAssignedUser)
	if !hasMachines || !hasAssigned {
		return fields
	}

	var assigned template.FieldDescriptor
	rest := make([]template.FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		if f.FieldName == assignedField {
			assigned = f
			continue
		}
		rest = append(rest, f)
	}

	out := make([]template.FieldDescriptor, 0, len(fields))
	for _, f := range rest {
		out = append(out, f)
		if f.FieldName == machinesField {
			out = append(out, assigned)
		}
	}

	return out
}
