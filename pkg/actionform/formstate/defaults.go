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

package formstate

import (
	"time"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/classifier"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
)

// Defaults computes the initial value of every visible field of tpl for a
// fresh selection at time now. username may be empty while the identity
// lookup is still outstanding.
func Defaults(tpl *template.Template, idx *classifier.Index, now time.Time, username string) map[string]formvalue.Value {
	out := make(map[string]formvalue.Value)
	if tpl == nil {
		return out
	}
	if idx == nil {
		idx = classifier.NewIndex(tpl)
	}

	for _, f := range tpl.VisibleFields() {
		switch idx.Role(f.FieldName) {
		case classifier.RoleStatus, classifier.RoleCategory:
			out[f.FieldName] = formvalue.Unselected()
		case classifier.RoleUpload:
			out[f.FieldName] = formvalue.Attachments()
		case classifier.RoleCreatedBy:
			out[f.FieldName] = formvalue.Text(username)
		case classifier.RoleDateCreated:
			out[f.FieldName] = formvalue.Text(now.UTC().Format(time.RFC3339))
		case classifier.RoleTypeIdentifier:
			out[f.FieldName] = formvalue.Int(tpl.ID)
		default:
			out[f.FieldName] = formvalue.FromDefault(f.DefaultValue)
		}
	}

	return out
}
