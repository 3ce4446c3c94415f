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

// Role is the inferred purpose of a template field. It is never stored; it is
// recomputed from the descriptor every time it is needed.
type Role int

const (
	RolePlainText Role = iota
	RoleTypeIdentifier
	RoleStatus
	RoleCategory
	RoleCreatedBy
	RoleDateCreated
	RoleDateDue
	RoleRelatedMachines
	RoleRelatedUsers
	RoleShift
	RoleLabel
	RoleAssignedUser
	RoleUpload
	RoleBoolean
)

var roleNames = map[Role]string{
	RolePlainText:       "plain-text",
	RoleTypeIdentifier:  "type-identifier",
	RoleStatus:          "status",
	RoleCategory:        "category",
	RoleCreatedBy:       "created-by",
	RoleDateCreated:     "date-created",
	RoleDateDue:         "date-due",
	RoleRelatedMachines: "related-machines",
	RoleRelatedUsers:    "related-users",
	RoleShift:           "shift",
	RoleLabel:           "label",
	RoleAssignedUser:    "assigned-user",
	RoleUpload:          "upload",
	RoleBoolean:         "boolean",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}

	return "unknown"
}

// IsSelection reports whether the field is fed from an auxiliary selection
// set rather than edited directly.
func (r Role) IsSelection() bool {
	return r == RoleRelatedMachines || r == RoleRelatedUsers || r == RoleAssignedUser
}

// IsIDPicker reports whether the field holds a single id chosen from a catalog.
func (r Role) IsIDPicker() bool {
	return r == RoleStatus || r == RoleCategory || r == RoleShift || r == RoleLabel || r == RoleTypeIdentifier
}
