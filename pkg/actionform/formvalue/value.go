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

// Package formvalue defines the value stored for one form field and the
// attachment entries carried by upload fields.
package formvalue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/actionform/pkg/safejson"
)

// Kind tags which member of the union a Value holds.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindBool
	KindAttachments
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindAttachments:
		return "attachments"
	default:
		return "unknown"
	}
}

// UnselectedID marks a status or category the user has not chosen yet.
const UnselectedID = -1

// Value is a tagged union over text, number, boolean and attachment-list.
// The fields are exported so snapshots can deep-copy them.
type Value struct {
	Kind        Kind
	Text        string
	Number      float64
	Bool        bool
	Attachments []Attachment
}

func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

func Number(n float64) Value {
	return Value{Kind: KindNumber, Number: n}
}

func Int(n int) Value {
	return Number(float64(n))
}

func Bool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// Attachments copies the given entries into a new attachment-list value.
// A nil slice yields an empty, non-nil list.
func Attachments(items ...Attachment) Value {
	list := make([]Attachment, len(items))
	copy(list, items)

	return Value{Kind: KindAttachments, Attachments: list}
}

// Unselected returns the sentinel used for status and category fields until
// the user picks an option.
func Unselected() Value {
	return Int(UnselectedID)
}

// IsUnselected reports whether v is the unselected sentinel. Empty text and
// a textual "-1" count as unselected too, since edit rows carry ids as strings.
func (v Value) IsUnselected() bool {
	switch v.Kind {
	case KindNumber:
		return v.Number == UnselectedID
	case KindText:
		s := strings.TrimSpace(v.Text)

		return s == "" || s == strconv.Itoa(UnselectedID)
	default:
		return false
	}
}

// IsEmpty reports whether v carries no user content.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindText:
		return strings.TrimSpace(v.Text) == ""
	case KindAttachments:
		return len(v.Attachments) == 0
	default:
		return false
	}
}

// IntValue returns the value as an integer id when it holds one.
func (v Value) IntValue() (int, bool) {
	switch v.Kind {
	case KindNumber:
		return int(v.Number), true
	case KindText:
		n, err := strconv.Atoi(strings.TrimSpace(v.Text))
		if err != nil {
			return 0, false
		}

		return n, true
	default:
		return 0, false
	}
}

// String renders the value for display and logging.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindAttachments:
		return fmt.Sprintf("%d attachment(s)", len(v.Attachments))
	default:
		return ""
	}
}

// Interface returns the plain Go value used when the payload is encoded.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNumber:
		if v.Number == float64(int64(v.Number)) {
			return int64(v.Number)
		}

		return v.Number
	case KindBool:
		return v.Bool
	case KindAttachments:
		return v.Attachments
	default:
		return v.Text
	}
}

// Clone returns a copy that shares no attachment storage with v.
func (v Value) Clone() Value {
	if v.Kind == KindAttachments {
		return Attachments(v.Attachments...)
	}

	return v
}

// FromAny coerces a decoded JSON scalar into a Value. Objects and arrays are
// kept as their JSON text.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Text("")
	case Value:
		return t
	case string:
		return Text(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Int(t)
	case int64:
		return Number(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}

		return Text(t.String())
	default:
		b, err := safejson.Marshal(t)
		if err != nil {
			return Text(fmt.Sprint(t))
		}

		return Text(string(b))
	}
}

// FromDefault coerces a descriptor default: "true"/"false" become booleans,
// anything else stays text.
func FromDefault(def string) Value {
	switch strings.ToLower(strings.TrimSpace(def)) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	default:
		return Text(def)
	}
}
