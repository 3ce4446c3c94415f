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

// Package models holds the wire types exchanged with the action backend.
package models

import "encoding/json"

type Machine struct {
	ID          int    `json:"Id"`
	DisplayName string `json:"DisplayName"`
	Type        string `json:"Type,omitempty"`
	ParentID    *int   `json:"ParentId,omitempty"`
}

type User struct {
	ID       int    `json:"Id"`
	Name     string `json:"Name"`
	Username string `json:"Username"`
}

// Label returns the name shown for the user, falling back to the username.
func (u User) Label() string {
	if u.Name != "" {
		return u.Name
	}

	return u.Username
}

type Shift struct {
	ID          int    `json:"Id"`
	DisplayName string `json:"DisplayName"`
	Type        string `json:"Type,omitempty"`
}

// Option is a category, status or label choice.
type Option struct {
	ID          int    `json:"Id"`
	Name        string `json:"Name"`
	DisplayName string `json:"DisplayName"`
}

// Label returns the display name, falling back to the name.
func (o Option) Label() string {
	if o.DisplayName != "" {
		return o.DisplayName
	}

	return o.Name
}

// TemplateDetail is the raw template detail response. Schema is either a
// JSON string holding the field list or the field list itself.
type TemplateDetail struct {
	ID          int             `json:"Id"`
	Name        string          `json:"Name"`
	DisplayName string          `json:"DisplayName"`
	Schema      json.RawMessage `json:"Schema"`
}

type UploadRequest struct {
	URI      string
	Name     string
	MimeType string
}

// MediaResult is one element of an upload response. The first element is
// authoritative.
type MediaResult struct {
	ID          int    `json:"Id"`
	IsValid     bool   `json:"IsValid"`
	SourceLink  string `json:"SourceLink"`
	PreviewLink string `json:"PreviewLink"`
}

// Record is a full action record as returned by the detail endpoint. Its
// keys follow the template the action was created from.
type Record map[string]any

// Payload is the template-shaped body of a create or update call.
type Payload map[string]any

type ActionResult struct {
	ID      int    `json:"Id"`
	Message string `json:"Message,omitempty"`
}

type Account struct {
	ID       int    `json:"Id"`
	Username string `json:"Username"`
	Name     string `json:"Name"`
}

// Latency summarises recent request durations in milliseconds.
type Latency struct {
	AvgMs float64 `json:"avgMs"`
	MaxMs float64 `json:"maxMs"`
	MinMs float64 `json:"minMs"`
	P95Ms float64 `json:"p95Ms"`
	P99Ms float64 `json:"p99Ms"`
}
