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
	"strings"
	"unicode"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
)

// rule maps a normalized descriptor to a role. Rules are tried in order and
// the first match wins, because naive substring matching lets several roles
// claim the same field ("users" appears in "created by a user" too).
type rule struct {
	role  Role
	match func(d descriptor) bool
}

// descriptor is the lower-cased view the rules work on.
type descriptor struct {
	rawName string
	name    string
	display string
	def     string
}

var rules = []rule{
	{RoleTypeIdentifier, func(d descriptor) bool {
		return d.rawName == "TypeId"
	}},
	{RoleCreatedBy, func(d descriptor) bool {
		return strings.Contains(d.display, "created by") || strings.Contains(d.name, "createdby")
	}},
	{RoleDateCreated, func(d descriptor) bool {
		return containsAny(d.display, "date created", "created date", "created on") ||
			d.name == "datecreated" || d.name == "createddate" || d.name == "createdat"
	}},
	{RoleDateDue, func(d descriptor) bool {
		return containsAny(d.display, "due date", "date due") || containsAny(d.name, "duedate", "datedue")
	}},
	{RoleRelatedMachines, func(d descriptor) bool {
		return strings.Contains(d.display, "machines") || d.name == "thingids" || d.name == "machineids"
	}},
	{RoleRelatedUsers, func(d descriptor) bool {
		if strings.Contains(d.display, "created by") {
			return false
		}

		return strings.Contains(d.display, "users") || d.name == "userids"
	}},
	{RoleShift, func(d descriptor) bool {
		if strings.Contains(d.display, "show on next shift") {
			return false
		}

		return strings.Contains(d.display, "shift") || strings.Contains(d.name, "shift")
	}},
	{RoleLabel, func(d descriptor) bool {
		return strings.Contains(d.display, "label") || strings.Contains(d.name, "label")
	}},
	{RoleAssignedUser, func(d descriptor) bool {
		return containsAny(d.display, "assigned to", "assignee") || containsAny(d.name, "assignee", "assigned")
	}},
	{RoleUpload, func(d descriptor) bool {
		return (strings.Contains(d.display, "upload") && strings.Contains(d.display, "file")) ||
			strings.Contains(d.display, "attachment") || strings.Contains(d.name, "attachment")
	}},
	// status and category are exact-name rules; they sit late so they never
	// shadow the substring rules above.
	{RoleStatus, func(d descriptor) bool {
		return d.name == "statusid" || d.display == "status"
	}},
	{RoleCategory, func(d descriptor) bool {
		return d.name == "categoryid" || d.display == "category"
	}},
	{RoleBoolean, func(d descriptor) bool {
		return d.def == "true" || d.def == "false" || startsWithIs(d.rawName) ||
			strings.Contains(d.display, "show on next shift")
	}},
}

// Classify maps a field descriptor to exactly one role. It is pure and total;
// anything no rule claims is plain text.
func Classify(fd template.FieldDescriptor) Role {
	d := descriptor{
		rawName: strings.TrimSpace(fd.FieldName),
		name:    strings.ToLower(strings.TrimSpace(fd.FieldName)),
		display: strings.ToLower(strings.Join(strings.Fields(fd.DisplayName), " ")),
		def:     strings.ToLower(strings.TrimSpace(fd.DefaultValue)),
	}

	for _, r := range rules {
		if r.match(d) {
			return r.role
		}
	}

	return RolePlainText
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}

// startsWithIs matches "IsUrgent", "isDone" and "is_active" but not "Issue"
// or "Island": the prefix has to be its own word.
func startsWithIs(name string) bool {
	if len(name) < 2 || !strings.EqualFold(name[:2], "is") {
		return false
	}
	if len(name) == 2 {
		return true
	}

	next := rune(name[2])

	return unicode.IsUpper(next) || unicode.IsDigit(next) || next == '_'
}
