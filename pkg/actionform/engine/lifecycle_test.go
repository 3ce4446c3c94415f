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
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
)

var _ = Describe("Template lifecycle", func() {
	var (
		h   *harness
		e   *engine.Engine
		ctx context.Context
	)

	BeforeEach(func() {
		h = newHarness()
		e = h.engine
		ctx = context.Background()
	})

	It("lists the templates of the backend", func() {
		list, err := e.ListTemplates(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(list).To(HaveLen(2))
	})

	Context("fresh selection", func() {
		It("seeds exactly the visible fields with role defaults", func() {
			Expect(e.SelectTemplate(ctx, 12)).To(Succeed())

			values := e.Values()
			Expect(values).To(HaveLen(11))
			Expect(values).ToNot(HaveKey("InternalRef"))
			Expect(values["StatusId"].IsUnselected()).To(BeTrue())
			Expect(values["CategoryId"].IsUnselected()).To(BeTrue())
			Expect(values["Details"]).To(Equal(formvalue.Text("n/a")))
			Expect(values["IsUrgent"]).To(Equal(formvalue.Bool(false)))
			Expect(values["Attachments"].Kind).To(Equal(formvalue.KindAttachments))
			Expect(values["Attachments"].Attachments).To(BeEmpty())
			Expect(values["CreatedBy"]).To(Equal(formvalue.Text("jdoe")))

			Expect(e.Machines()).To(BeEmpty())
			Expect(e.RelatedUsers()).To(BeEmpty())
			_, assigned := e.AssignedUser()
			Expect(assigned).To(BeFalse())
		})

		It("loads the catalogs the template declares", func() {
			Expect(e.SelectTemplate(ctx, 12)).To(Succeed())

			Expect(e.Categories()).To(HaveLen(1))
			Expect(e.Statuses()).To(HaveLen(1))
			Expect(h.backend.Calls("ListLabels")).To(BeZero())
		})

		It("keeps a failed catalog local to its section", func() {
			h.backend.categoriesErr = errors.New("boom")

			Expect(e.SelectTemplate(ctx, 12)).To(Succeed())
			Expect(e.SectionError(engine.SectionCategories)).To(Equal("Could not load categories"))
			Expect(e.Categories()).To(BeEmpty())
			Expect(e.Statuses()).To(HaveLen(1))
			Expect(e.SectionError(engine.SectionStatuses)).To(BeEmpty())
		})

		It("orders the assignee after the machines", func() {
			Expect(e.SelectTemplate(ctx, 12)).To(Succeed())

			names := make([]string, 0)
			for _, f := range e.Fields() {
				names = append(names, f.FieldName)
			}
			Expect(names).To(ContainElements("ThingIds", "AssigneeId"))
			for i, n := range names {
				if n == "ThingIds" {
					Expect(names[i+1]).To(Equal("AssigneeId"))
				}
			}
		})

		It("clears the previous form when switching templates", func() {
			Expect(e.SelectTemplate(ctx, 12)).To(Succeed())
			e.SetMachines(ctx, formstate.Selection{{ID: 42, DisplayName: "Press1"}})
			e.Set("Details", formvalue.Text("belt snapped"))

			Expect(e.SelectTemplate(ctx, 3)).To(Succeed())
			Expect(e.Machines()).To(BeEmpty())
			Expect(e.Values()).To(HaveLen(5))
			Expect(e.Values()["Details"]).To(Equal(formvalue.Text("")))
		})

		It("keeps the form when the active template is picked again", func() {
			Expect(e.SelectTemplate(ctx, 12)).To(Succeed())
			e.Set("Details", formvalue.Text("belt snapped"))

			Expect(e.SelectTemplate(ctx, 12)).To(Succeed())
			Expect(valueOf(e, "Details")).To(Equal(formvalue.Text("belt snapped")))
		})

		It("serves repeated selections from the template cache", func() {
			Expect(e.SelectTemplate(ctx, 12)).To(Succeed())
			Expect(e.SelectTemplate(ctx, 3)).To(Succeed())
			Expect(e.SelectTemplate(ctx, 12)).To(Succeed())

			Expect(h.backend.Calls("GetTemplateDetail")).To(Equal(2))
		})

		It("reports a failed template fetch as a fetch error", func() {
			h.backend.templateErr = errors.New("unavailable")

			err := e.SelectTemplate(ctx, 12)
			Expect(formerror.IsFetch(err)).To(BeTrue())
			Expect(e.SectionError(engine.SectionTemplate)).To(Equal("Could not load template"))
			Expect(e.Template()).To(BeNil())
		})
	})

	Context("racing selections", func() {
		It("discards a template that arrives after a newer selection", func() {
			gate := make(chan struct{})
			h.backend.templateGate[12] = gate

			slow := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				slow <- e.SelectTemplate(ctx, 12)
			}()
			Eventually(func() int { return h.backend.Calls("GetTemplateDetail") }).Should(Equal(1))

			Expect(e.SelectTemplate(ctx, 3)).To(Succeed())
			close(gate)

			Eventually(slow).Should(Receive(MatchError(engine.ErrSuperseded)))
			Expect(e.Template().ID).To(Equal(3))
			Expect(e.Values()).To(HaveLen(5))
			Expect(e.Values()).ToNot(HaveKey("ShiftId"))
		})

		It("discards defaults computed for a template that lost the race", func() {
			now, entered, release := blockingClock()
			racy := h.mountWithClock(now)

			slow := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				slow <- racy.SelectTemplate(ctx, 12)
			}()
			Eventually(entered).Should(BeClosed())

			Expect(racy.SelectTemplate(ctx, 3)).To(Succeed())
			close(release)

			Eventually(slow).Should(Receive(MatchError(engine.ErrSuperseded)))
			Expect(racy.Template().ID).To(Equal(3))
			Expect(racy.Values()).To(HaveLen(5))
			Expect(racy.Values()).ToNot(HaveKey("ShiftId"))
		})
	})

	It("exposes the role of each field", func() {
		Expect(e.SelectTemplate(ctx, 12)).To(Succeed())

		Expect(e.Role("ShiftId").String()).To(Equal("shift"))
		Expect(e.Role("Unknown").String()).To(Equal("plain-text"))
		Expect(e.Template()).To(BeAssignableToTypeOf(&template.Template{}))
	})
})
