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
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/classifier"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
	"github.com/united-manufacturing-hub/actionform/pkg/models"
)

// Keys of one uploaded attachment inside the payload.
const (
	AttachmentIDKey      = "Id"
	AttachmentNameKey    = "Name"
	AttachmentSourceKey  = "SourceLink"
	AttachmentPreviewKey = "PreviewLink"
)

// BuildPayload shapes values after the template. Only visible declared
// fields get a key, plus the action name. Id fields holding the unselected
// sentinel or nothing are sent as null.
func BuildPayload(tpl *template.Template, idx *classifier.Index, actionName string, values map[string]formvalue.Value) models.Payload {
	payload := models.Payload{ActionNameField: strings.TrimSpace(actionName)}
	if tpl == nil {
		return payload
	}
	if idx == nil {
		idx = classifier.NewIndex(tpl)
	}

	for _, fd := range tpl.VisibleFields() {
		if fd.FieldName == ActionNameField {
			continue
		}
		v, ok := values[fd.FieldName]
		role := idx.Role(fd.FieldName)

		switch {
		case role == classifier.RoleUpload && (!ok || v.Kind == formvalue.KindAttachments):
			payload[fd.FieldName] = attachmentPayload(v.Attachments)
		case role.IsIDPicker() || role == classifier.RoleAssignedUser:
			payload[fd.FieldName] = idOrNil(v, ok)
		case role == classifier.RoleBoolean:
			payload[fd.FieldName] = boolOf(v, ok)
		case !ok:
			payload[fd.FieldName] = nil
		default:
			payload[fd.FieldName] = v.Interface()
		}
	}

	return payload
}

func idOrNil(v formvalue.Value, ok bool) any {
	if !ok || v.IsUnselected() {
		return nil
	}
	id, ok := v.IntValue()
	if !ok {
		return nil
	}

	return id
}

func boolOf(v formvalue.Value, ok bool) bool {
	if !ok {
		return false
	}
	switch v.Kind {
	case formvalue.KindBool:
		return v.Bool
	case formvalue.KindNumber:
		return v.Number != 0
	default:
		b, _ := strconv.ParseBool(strings.TrimSpace(v.Text))

		return b
	}
}

func attachmentPayload(list []formvalue.Attachment) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, a := range list {
		if a.UploadState != formvalue.UploadUploaded {
			continue
		}
		var id any = a.RemoteID
		if n, err := strconv.Atoi(a.RemoteID); err == nil {
			id = n
		}
		out = append(out, map[string]any{
			AttachmentIDKey:      id,
			AttachmentNameKey:    a.DisplayName,
			AttachmentSourceKey:  a.RemoteURL,
			AttachmentPreviewKey: a.PreviewURL,
		})
	}

	return out
}
