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

package engine_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/engine"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formerror"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formstate"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/roundtrip"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
	"github.com/united-manufacturing-hub/actionform/pkg/models"
)

type backendError struct {
	message string
}

func (b backendError) Error() string          { return "request failed: " + b.message }
func (b backendError) BackendMessage() string { return b.message }

var _ = Describe("Submission", func() {
	var (
		h   *harness
		e   *engine.Engine
		ctx context.Context
	)

	fill := func(templateID int) {
		Expect(e.SelectTemplate(ctx, templateID)).To(Succeed())
		e.SetMachines(ctx, formstate.Selection{{ID: 42, DisplayName: "Press1"}})
		e.Set("StatusId", formvalue.Int(1))
		e.Set("CategoryId", formvalue.Int(9))
		e.SetActionName("Jam")
	}

	BeforeEach(func() {
		h = newHarness()
		e = h.engine
		ctx = context.Background()
	})

	DescribeTable("rejects an incomplete form without touching the backend",
		func(breakForm func(), message string) {
			fill(12)
			breakForm()

			_, err := e.Submit(ctx)
			Expect(formerror.IsValidation(err)).To(BeTrue())
			Expect(formerror.UserMessage(err)).To(Equal(message))
			Expect(h.backend.networkWrites()).To(BeZero())
		},
		Entry("no machine", func() { e.SetMachines(ctx, nil) }, engine.MsgNoMachine),
		Entry("unselected status", func() { e.Set("StatusId", formvalue.Unselected()) }, engine.MsgNoStatus),
		Entry("unselected category", func() { e.Set("CategoryId", formvalue.Unselected()) }, engine.MsgNoCategory),
		Entry("blank action name", func() { e.SetActionName("   ") }, engine.MsgNoName),
	)

	It("rejects a submission before any template is selected", func() {
		_, err := e.Submit(ctx)
		Expect(formerror.UserMessage(err)).To(Equal(engine.MsgNoTemplate))
	})

	It("does not require a category the template does not declare", func() {
		h.backend.templates[4] = &template.Template{ID: 4, Name: "note", Fields: []template.FieldDescriptor{
			{FieldName: "Name", DisplayName: "Action name", Order: 1, Visible: true},
			{FieldName: "StatusId", DisplayName: "Status", Order: 2, Visible: true},
			{FieldName: "ThingIds", DisplayName: "Machines", Order: 3, Visible: true},
		}}
		Expect(e.SelectTemplate(ctx, 4)).To(Succeed())
		e.SetMachines(ctx, formstate.Selection{{ID: 42, DisplayName: "Press1"}})
		e.Set("StatusId", formvalue.Int(1))
		e.SetActionName("Jam")

		_, err := e.Submit(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(h.backend.created[0].payload).ToNot(HaveKey("CategoryId"))
	})

	It("creates the action against the first machine and navigates back", func() {
		fill(12)

		res, err := e.Submit(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Mode).To(Equal(engine.ModeCreate))
		Expect(res.ID).To(Equal(900))

		Expect(h.backend.created).To(HaveLen(1))
		call := h.backend.created[0]
		Expect(call.machineID).To(Equal(42))
		Expect(call.payload).To(HaveKeyWithValue("Name", "Jam"))
		Expect(call.payload).To(HaveKeyWithValue("StatusId", 1))
		Expect(call.payload).To(HaveKeyWithValue("CategoryId", 9))
		Expect(call.payload).To(HaveKeyWithValue("ShiftId", 1))
		Expect(call.payload).To(HaveKeyWithValue("AssigneeId", BeNil()))
		Expect(call.payload).To(HaveKeyWithValue("IsUrgent", false))
		Expect(call.payload).To(HaveKeyWithValue("CreatedBy", "jdoe"))
		Expect(call.payload).ToNot(HaveKey("InternalRef"))

		Expect(h.nav.wentBack()).To(Equal([]roundtrip.Params{{engine.ReloadParam: true}}))
	})

	It("sends only the keys the template declares", func() {
		fill(3)
		e.Set("Details", formvalue.Text("scratches on the housing"))

		_, err := e.Submit(ctx)
		Expect(err).ToNot(HaveOccurred())

		payload := h.backend.created[0].payload
		Expect(payload).ToNot(HaveKey("ShiftId"))
		Expect(payload).ToNot(HaveKey("AssigneeId"))
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		Expect(keys).To(ConsistOf("Name", "Details", "StatusId", "CategoryId", "ThingIds"))
	})

	Context("attachments", func() {
		It("never uploads an attachment twice", func() {
			fill(12)
			_, err := e.AddAttachment("Attachments", "file:///tmp/a.jpg", "a.jpg", "image/jpeg", formvalue.OriginCamera)
			Expect(err).ToNot(HaveOccurred())
			bKey, err := e.AddAttachment("Attachments", "file:///tmp/b.jpg", "b.jpg", "image/jpeg", formvalue.OriginGallery)
			Expect(err).ToNot(HaveOccurred())

			h.backend.uploadResult = func(req models.UploadRequest) []models.MediaResult {
				if req.Name == "b.jpg" {
					return []models.MediaResult{{IsValid: false}}
				}

				return []models.MediaResult{{ID: 501, IsValid: true, SourceLink: "https://media.example.com/501"}}
			}

			_, err = e.Submit(ctx)
			Expect(formerror.IsUpload(err)).To(BeTrue())
			Expect(formerror.UserMessage(err)).To(ContainSubstring("b.jpg"))
			Expect(h.backend.Calls("CreateAction")).To(BeZero())

			list, err := e.Attachments("Attachments")
			Expect(err).ToNot(HaveOccurred())
			Expect(list[0].UploadState).To(Equal(formvalue.UploadUploaded))
			Expect(list[0].RemoteID).To(Equal("501"))
			Expect(list[1].Key).To(Equal(bKey))
			Expect(list[1].UploadState).To(Equal(formvalue.UploadFailed))
			Expect(list[1].Error).ToNot(BeEmpty())

			h.backend.uploadResult = nil
			_, err = e.Submit(ctx)
			Expect(err).ToNot(HaveOccurred())

			names := make([]string, 0)
			for _, u := range h.backend.uploads {
				names = append(names, u.Name)
			}
			Expect(names).To(Equal([]string{"a.jpg", "b.jpg", "b.jpg"}))

			sent, ok := h.backend.created[0].payload["Attachments"].([]map[string]any)
			Expect(ok).To(BeTrue())
			Expect(sent).To(HaveLen(2))
			Expect(sent[0]).To(HaveKeyWithValue(engine.AttachmentIDKey, 501))
		})

		It("reports a transport failure of an upload", func() {
			fill(12)
			_, err := e.AddAttachment("Attachments", "file:///tmp/a.jpg", "a.jpg", "image/jpeg", formvalue.OriginFile)
			Expect(err).ToNot(HaveOccurred())
			h.backend.uploadErr = errors.New("connection reset")

			_, err = e.Submit(ctx)
			Expect(formerror.IsUpload(err)).To(BeTrue())
			list, _ := e.Attachments("Attachments")
			Expect(list[0].Error).To(Equal("connection reset"))
		})
	})

	Context("when the backend refuses the action", func() {
		It("surfaces the backend message and keeps the form", func() {
			fill(12)
			e.Set("Details", formvalue.Text("belt snapped"))
			h.backend.createErr = backendError{message: "Machine is locked"}

			_, err := e.Submit(ctx)
			Expect(formerror.IsSubmission(err)).To(BeTrue())
			Expect(formerror.UserMessage(err)).To(Equal("Machine is locked"))
			Expect(valueOf(e, "Details")).To(Equal(formvalue.Text("belt snapped")))
			Expect(e.Machines()).To(HaveLen(1))
			Expect(h.nav.wentBack()).To(BeEmpty())
		})

		It("falls back to a generic message", func() {
			fill(12)
			h.backend.createErr = errors.New("EOF")

			_, err := e.Submit(ctx)
			Expect(formerror.UserMessage(err)).To(Equal(formerror.GenericSubmissionMessage))
		})
	})

	It("updates the edited action", func() {
		h.backend.detail = models.Record{"TypeId": 12, "StatusId": 1, "CategoryId": 9}
		Expect(e.OpenForEdit(ctx, models.Record{"Id": 7, "Name": "Jam", "MachineId": 42, "MachineName": "Press1"})).To(Succeed())

		res, err := e.Submit(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Mode).To(Equal(engine.ModeUpdate))
		Expect(h.backend.updated).To(HaveLen(1))
		Expect(h.backend.updated[0].id).To(Equal(7))
		Expect(h.backend.updated[0].payload).To(HaveKeyWithValue("Name", "Jam"))
		Expect(h.backend.Calls("CreateAction")).To(BeZero())
	})
})
