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

// Package safejson wraps goccy/go-json for speed and falls back to
// encoding/json whenever goccy panics on an unusual payload.
package safejson

import (
	"bytes"
	jsonstd "encoding/json"
	"errors"
	"reflect"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Unmarshal decodes val into decoded, which must be a non-nil pointer.
func Unmarshal(val []byte, decoded any) (err error) {
	ptr := reflect.ValueOf(decoded)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return errors.New("decoded must be a non-nil pointer")
	}

	defer func() {
		if r := recover(); r != nil {
			zap.S().Warnf("goccy failed to decode, falling back to stdlib: %v", r)
			err = jsonstd.Unmarshal(val, decoded)
		}
	}()

	return json.Unmarshal(val, decoded)
}

// UnmarshalNumbers decodes like Unmarshal but keeps numbers as json.Number,
// so that large integer ids inside map[string]any survive unchanged.
func UnmarshalNumbers(val []byte, decoded any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Warnf("goccy failed to decode, falling back to stdlib: %v", r)
			dec := jsonstd.NewDecoder(bytes.NewReader(val))
			dec.UseNumber()
			err = dec.Decode(decoded)
		}
	}()

	dec := json.NewDecoder(bytes.NewReader(val))
	dec.UseNumber()

	return dec.Decode(decoded)
}

// Marshal encodes val, falling back to stdlib on panic.
func Marshal(val any) (encoded []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Warnf("goccy failed to encode, falling back to stdlib: %v", r)
			encoded, err = jsonstd.Marshal(val)
		}
	}()

	return json.Marshal(val)
}

// MarshalIndent is the indented variant of Marshal.
func MarshalIndent(val any, prefix, indent string) (encoded []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Warnf("goccy failed to encode, falling back to stdlib: %v", r)
			encoded, err = jsonstd.MarshalIndent(val, prefix, indent)
		}
	}()

	return json.MarshalIndent(val, prefix, indent)
}
