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

// Package formerror carries the action form error taxonomy.
//
// Validation errors are caught before any network effect and are always shown
// to the user. Fetch errors are non-fatal and degrade to an inline message.
// Upload errors halt a submission and mark a single attachment failed.
// Submission errors come from the create/update call and keep the form intact.
package formerror

import (
	"errors"
	"fmt"
)

// Category classifies an engine error.
type Category int

const (
	CategoryValidation Category = iota
	CategoryFetch
	CategoryUpload
	CategorySubmission
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryFetch:
		return "fetch"
	case CategoryUpload:
		return "upload"
	case CategorySubmission:
		return "submission"
	default:
		return "unknown"
	}
}

// GenericSubmissionMessage is shown when the backend gave no usable message.
const GenericSubmissionMessage = "Saving the action failed. Please try again."

// Error is a categorized engine error. Message is meant for the user;
// Err keeps the underlying cause for logs.
type Error struct {
	Category Category
	// Field names the form field the error belongs to, if any.
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidation(field, message string) error {
	return &Error{Category: CategoryValidation, Field: field, Message: message}
}

func NewFetch(source string, err error) error {
	return &Error{Category: CategoryFetch, Field: source, Message: fmt.Sprintf("Could not load %s", source), Err: err}
}

// NewUpload names the failed file in the user message.
func NewUpload(field, fileName string, err error) error {
	return &Error{Category: CategoryUpload, Field: field, Message: fmt.Sprintf("Uploading %q failed", fileName), Err: err}
}

// NewSubmission uses backendMessage when present and the generic fallback otherwise.
func NewSubmission(backendMessage string, err error) error {
	if backendMessage == "" {
		backendMessage = GenericSubmissionMessage
	}

	return &Error{Category: CategorySubmission, Message: backendMessage, Err: err}
}

func is(err error, c Category) bool {
	var fe *Error

	return errors.As(err, &fe) && fe.Category == c
}

func IsValidation(err error) bool { return is(err, CategoryValidation) }
func IsFetch(err error) bool      { return is(err, CategoryFetch) }
func IsUpload(err error) bool     { return is(err, CategoryUpload) }
func IsSubmission(err error) bool { return is(err, CategorySubmission) }

// UserMessage returns the message to display for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}

	return GenericSubmissionMessage
}
