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
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/classifier"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formerror"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/roundtrip"
	"github.com/united-manufacturing-hub/actionform/pkg/logger"
	"github.com/united-manufacturing-hub/actionform/pkg/metrics"
	"github.com/united-manufacturing-hub/actionform/pkg/models"
	"github.com/united-manufacturing-hub/actionform/pkg/sentry"
)

// Submission modes, also used as metric labels.
const (
	ModeCreate = "create"
	ModeUpdate = "update"
)

// ReloadParam is set on the navigation back to the caller after a save.
const ReloadParam = "reload"

// Validation messages.
const (
	MsgNoTemplate = "Please select a template"
	MsgNoMachine  = "Please select at least one machine"
	MsgNoStatus   = "Please select a status"
	MsgNoCategory = "Please select a category"
	MsgNoName     = "Please enter an action name"
)

var (
	ErrSubmitInProgress = errors.New("a submission is already in progress")
	errUploadRejected   = errors.New("media service rejected the file")
)

// SubmitResult describes a saved action.
type SubmitResult struct {
	Mode    string
	ID      int
	Message string
	Payload models.Payload
}

// Submit validates the form, uploads pending attachments one at a time and
// creates or updates the action. Any failure leaves the form as it was,
// except that attachments uploaded before the failure stay uploaded.
func (e *Engine) Submit(ctx context.Context) (*SubmitResult, error) {
	log := logger.For(logger.ComponentSubmission)

	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()

		return nil, ErrSubmitInProgress
	}
	e.submitting = true
	tpl, idx := e.tpl, e.index
	actionName := e.actionName
	editID := e.editID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.submitting = false
		e.mu.Unlock()
	}()

	mode := ModeCreate
	if editID > 0 {
		mode = ModeUpdate
	}

	if err := e.validate(idx, actionName); err != nil {
		metrics.IncSubmission(mode, metrics.OutcomeValidation)
		log.Debugw("submission rejected", "reason", formerror.UserMessage(err))

		return nil, err
	}

	if err := e.uploadAttachments(ctx, idx, tpl.ID); err != nil {
		metrics.IncSubmission(mode, metrics.OutcomeFailure)

		return nil, err
	}

	payload := BuildPayload(tpl, idx, actionName, e.store.Values())

	var (
		res *models.ActionResult
		err error
	)
	if mode == ModeUpdate {
		res, err = e.deps.Records.UpdateAction(ctx, editID, payload)
	} else {
		machine, _ := e.store.Machines().First()
		res, err = e.deps.Records.CreateAction(ctx, machine.ID, payload)
	}
	if err != nil {
		metrics.IncSubmission(mode, metrics.OutcomeFailure)
		sentry.ReportSubmissionError(log, mode, tpl.ID, err)

		return nil, formerror.NewSubmission(backendMessage(err), err)
	}

	metrics.IncSubmission(mode, metrics.OutcomeSuccess)
	result := &SubmitResult{Mode: mode, Payload: payload}
	if res != nil {
		result.ID = res.ID
		result.Message = res.Message
	}
	if result.ID == 0 && mode == ModeUpdate {
		result.ID = editID
	}
	log.Infow("action saved", "mode", mode, "action", result.ID, "template", tpl.ID)

	if e.deps.Navigator != nil {
		if err := e.deps.Navigator.GoBack(ctx, roundtrip.Params{ReloadParam: true}); err != nil {
			log.Warnw("failed to navigate back after save", "error", err)
		}
	}

	return result, nil
}

// validate checks every precondition before anything is sent.
func (e *Engine) validate(idx *classifier.Index, actionName string) error {
	if idx == nil {
		return formerror.NewValidation("", MsgNoTemplate)
	}
	if len(e.store.Machines()) == 0 {
		field, _ := idx.FieldForRole(classifier.RoleRelatedMachines)

		return formerror.NewValidation(field, MsgNoMachine)
	}
	for _, check := range []struct {
		role classifier.Role
		msg  string
	}{
		{classifier.RoleStatus, MsgNoStatus},
		{classifier.RoleCategory, MsgNoCategory},
	} {
		field, ok := idx.FieldForRole(check.role)
		if !ok {
			continue
		}
		if v, ok := e.store.Get(field); !ok || v.IsUnselected() {
			return formerror.NewValidation(field, check.msg)
		}
	}
	if strings.TrimSpace(actionName) == "" {
		return formerror.NewValidation(ActionNameField, MsgNoName)
	}

	return nil
}

// uploadAttachments sends every pending or failed attachment. Uploads run
// sequentially and stop at the first failure.
func (e *Engine) uploadAttachments(ctx context.Context, idx *classifier.Index, templateID int) error {
	log := logger.For(logger.ComponentSubmission)

	for _, fd := range idx.Ordered() {
		if idx.Role(fd.FieldName) != classifier.RoleUpload {
			continue
		}
		list, err := e.store.Attachments(fd.FieldName)
		if err != nil {
			continue
		}

		for _, a := range list {
			if !a.NeedsUpload() {
				continue
			}
			if err := e.uploadOne(ctx, fd.FieldName, a); err != nil {
				metrics.IncUpload(metrics.OutcomeFailure)
				sentry.ReportSubmissionError(log, "upload", templateID, err)

				return formerror.NewUpload(fd.FieldName, a.DisplayName, err)
			}
			metrics.IncUpload(metrics.OutcomeSuccess)
		}
	}

	return nil
}

func (e *Engine) uploadOne(ctx context.Context, field string, a formvalue.Attachment) error {
	if err := e.store.UpdateAttachment(field, a.Key, (*formvalue.Attachment).BeginUpload); err != nil {
		return err
	}

	results, err := e.deps.Media.UploadAttachment(ctx, models.UploadRequest{
		URI:      a.SourceURI,
		Name:     a.DisplayName,
		MimeType: a.MimeType,
	})
	if err == nil && (len(results) == 0 || !results[0].IsValid) {
		err = errUploadRejected
	}
	if err != nil {
		msg := err.Error()
		_ = e.store.UpdateAttachment(field, a.Key, func(att *formvalue.Attachment) error {
			return att.FailUpload(msg)
		})

		return err
	}

	first := results[0]

	return e.store.UpdateAttachment(field, a.Key, func(att *formvalue.Attachment) error {
		return att.CompleteUpload(strconv.Itoa(first.ID), first.SourceLink, first.PreviewLink)
	})
}

// backendMessage extracts the server's own message from a failed call.
func backendMessage(err error) string {
	var withMessage interface{ BackendMessage() string }
	if errors.As(err, &withMessage) {
		return withMessage.BackendMessage()
	}

	return ""
}
