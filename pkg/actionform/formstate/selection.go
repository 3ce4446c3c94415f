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
	"fmt"
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/actionform/pkg/safejson"
)

// SerializeSelection renders a selection as a JSON array of
// {Id, DisplayName, ...extra}. Keys are sorted, so equal selections always
// serialize to equal text.
func SerializeSelection(sel Selection) (string, error) {
	items := make([]map[string]any, 0, len(sel))
	for _, r := range sel {
		item := make(map[string]any, len(r.Extra)+2)
		for k, v := range r.Extra {
			item[k] = v
		}
		item["Id"] = r.ID
		item["DisplayName"] = r.DisplayName
		items = append(items, item)
	}

	b, err := safejson.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to serialize selection: %w", err)
	}

	return string(b), nil
}

// ParseSelection reads a serialized selection back. Ids may be numbers or
// numeric strings; entries without a usable id are skipped.
func ParseSelection(text string) (Selection, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Selection{}, nil
	}

	var items []map[string]any
	if err := safejson.UnmarshalNumbers([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("failed to parse selection: %w", err)
	}

	sel := make(Selection, 0, len(items))
	for _, item := range items {
		id, ok := intFrom(item["Id"])
		if !ok {
			continue
		}
		ref := Ref{ID: id}
		if name, ok := item["DisplayName"].(string); ok {
			ref.DisplayName = name
		}
		for k, v := range item {
			if k == "Id" || k == "DisplayName" {
				continue
			}
			if ref.Extra == nil {
				ref.Extra = make(map[string]any)
			}
			ref.Extra[k] = v
		}
		sel = append(sel, ref)
	}

	return sel, nil
}

func intFrom(raw any) (int, bool) {
	switch t := raw.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	case interface{ Int64() (int64, error) }:
		n, err := t.Int64()

		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))

		return n, err == nil
	default:
		return 0, false
	}
}
