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

// Package template holds the server-defined action templates: the list
// summaries, the full detail with its field descriptors, and the parser for
// the schema blob the backend embeds in the detail response.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/actionform/pkg/safejson"
)

// Summary is one row of the template list.
type Summary struct {
	ID          int    `json:"Id"`
	Name        string `json:"Name"`
	DisplayName string `json:"DisplayName"`
	Description string `json:"Description"`
}

// Template is the full template detail. It is immutable once fetched.
type Template struct {
	ID          int
	Name        string
	DisplayName string
	Fields      []FieldDescriptor
}

// FieldDescriptor describes one form field. FieldName is unique within a template.
type FieldDescriptor struct {
	FieldName    string
	DisplayName  string
	Order        int
	Mandatory    bool
	Visible      bool
	DefaultValue string
}

// Field returns the descriptor with the given name.
func (t *Template) Field(name string) (FieldDescriptor, bool) {
	if t == nil {
		return FieldDescriptor{}, false
	}
	for _, f := range t.Fields {
		if f.FieldName == name {
			return f, true
		}
	}

	return FieldDescriptor{}, false
}

// VisibleFields returns the visible descriptors sorted by Order.
// The sort is stable so equal orders keep their declaration sequence.
func (t *Template) VisibleFields() []FieldDescriptor {
	if t == nil {
		return nil
	}

	out := make([]FieldDescriptor, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Visible {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })

	return out
}

// rawField accepts the loosely typed shapes older templates were saved with.
type rawField struct {
	FieldName    string          `json:"FieldName"`
	Name         string          `json:"Name"`
	DisplayName  string          `json:"DisplayName"`
	Order        json.RawMessage `json:"Order"`
	Mandatory    json.RawMessage `json:"Mandatory"`
	Visible      json.RawMessage `json:"Visible"`
	DefaultValue json.RawMessage `json:"DefaultValue"`
}

// ParseSchema parses the schema blob of a template detail. The blob is
// either a JSON array of fields or an object holding a "Fields" array.
func ParseSchema(blob string) ([]FieldDescriptor, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, nil
	}

	var raws []rawField
	if strings.HasPrefix(blob, "{") {
		var wrapper struct {
			Fields []rawField `json:"Fields"`
		}
		if err := safejson.Unmarshal([]byte(blob), &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse template schema: %w", err)
		}
		raws = wrapper.Fields
	} else if err := safejson.Unmarshal([]byte(blob), &raws); err != nil {
		return nil, fmt.Errorf("failed to parse template schema: %w", err)
	}

	fields := make([]FieldDescriptor, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))

	for i, r := range raws {
		name := r.FieldName
		if name == "" {
			name = r.Name
		}
		if name == "" {
			return nil, fmt.Errorf("template schema field %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("template schema declares field %q twice", name)
		}
		seen[name] = struct{}{}

		order, err := rawInt(r.Order, i)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}

		fields = append(fields, FieldDescriptor{
			FieldName:    name,
			DisplayName:  r.DisplayName,
			Order:        order,
			Mandatory:    rawBool(r.Mandatory, false),
			Visible:      rawBool(r.Visible, true),
			DefaultValue: rawString(r.DefaultValue),
		})
	}

	return fields, nil
}

func rawInt(raw json.RawMessage, fallback int) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return fallback, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("order is not an integer")
	}

	return n, nil
}

func rawBool(raw json.RawMessage, fallback bool) bool {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(raw)), `"`))
	switch s {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return fallback
	}
}

func rawString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}

	var str string
	if err := safejson.Unmarshal(raw, &str); err == nil {
		return str
	}

	// numbers and booleans are kept in their literal form
	return s
}
