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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/engine"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formerror"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formstate"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/roundtrip"
	"github.com/united-manufacturing-hub/actionform/pkg/models"
)

var _ = Describe("Picker round trip", func() {
	var (
		h   *harness
		e   *engine.Engine
		ctx context.Context
		ada = formstate.Ref{ID: 100, DisplayName: "Ada Lovelace"}
	)

	BeforeEach(func() {
		h = newHarness()
		e = h.engine
		ctx = context.Background()
		Expect(e.SelectTemplate(ctx, 12)).To(Succeed())
		e.SetMachines(ctx, formstate.Selection{{ID: 42, DisplayName: "Press1"}})
		e.Set("Details", formvalue.Text("belt snapped"))
		e.SetActionName("Jam")
	})

	It("applies the picked users and leaves every other field alone", func() {
		before := e.Values()

		handle, err := e.OpenPicker(ctx, roundtrip.KindRelatedUsers, "UserIds", 340)
		Expect(err).ToNot(HaveOccurred())

		call := h.nav.last()
		Expect(call.screen).To(Equal(roundtrip.ScreenUserPicker))
		Expect(call.params[roundtrip.ParamMachineID]).To(Equal(42))

		Expect(h.coord.Deliver(handle.Channel, roundtrip.Result{Selection: formstate.Selection{ada}})).To(Succeed())

		applied, err := e.OnFocus(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(applied).To(BeTrue())

		Expect(e.RelatedUsers()).To(Equal(formstate.Selection{ada}))
		after := e.Values()
		for field, v := range before {
			if field == "UserIds" {
				continue
			}
			Expect(after[field]).To(Equal(v), "field %s changed", field)
		}
		Expect(e.ActionName()).To(Equal("Jam"))
		Expect(h.scroller.requested()).To(Equal([]float64{340}))
		Expect(h.coord.State()).To(Equal(roundtrip.StateIdle))
	})

	It("applies a return exactly once across repeated focus", func() {
		handle, err := e.OpenPicker(ctx, roundtrip.KindRelatedUsers, "UserIds", 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(h.coord.Deliver(handle.Channel, roundtrip.Result{Selection: formstate.Selection{ada}})).To(Succeed())

		applied, err := e.OnFocus(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(applied).To(BeTrue())

		Expect(e.SetRelatedUsers(nil)).To(Succeed())

		applied, err = e.OnFocus(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(applied).To(BeFalse())
		Expect(e.RelatedUsers()).To(BeEmpty())
		Expect(h.scroller.requested()).To(HaveLen(1))
	})

	It("retries the scroll restoration until the layout is ready", func() {
		h.scroller.failures = 2
		handle, err := e.OpenPicker(ctx, roundtrip.KindMachines, "ThingIds", 55)
		Expect(err).ToNot(HaveOccurred())
		Expect(h.coord.Deliver(handle.Channel, roundtrip.Result{Selection: e.Machines()})).To(Succeed())

		_, err = e.OnFocus(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(h.scroller.requested()).To(Equal([]float64{55, 55, 55}))
	})

	It("merges machines and refreshes the scoped data", func() {
		handle, err := e.OpenPicker(ctx, roundtrip.KindMachines, "ThingIds", 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(h.nav.last().params[roundtrip.ParamInitialSelection]).To(Equal(formstate.Selection{{ID: 42, DisplayName: "Press1"}}))

		Expect(h.coord.Deliver(handle.Channel, roundtrip.Result{Selection: formstate.Selection{{ID: 43, DisplayName: "Press2"}}})).To(Succeed())
		_, err = e.OnFocus(ctx)
		Expect(err).ToNot(HaveOccurred())

		first, _ := e.Machines().First()
		Expect(first.ID).To(Equal(43))
		Expect(intOf(e, "ShiftId")).To(Equal(2))
	})

	It("sets the assignee from a single-select picker", func() {
		handle, err := e.OpenPicker(ctx, roundtrip.KindAssignedUser, "AssigneeId", 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(h.nav.last().params[roundtrip.ParamMultiSelect]).To(BeFalse())

		Expect(h.coord.Deliver(handle.Channel, roundtrip.Result{Selection: formstate.Selection{ada}})).To(Succeed())
		_, err = e.OnFocus(ctx)
		Expect(err).ToNot(HaveOccurred())

		assignee, ok := e.AssignedUser()
		Expect(ok).To(BeTrue())
		Expect(assignee.ID).To(Equal(100))
		Expect(intOf(e, "AssigneeId")).To(Equal(100))
	})

	It("waits for the picker through the handle", func() {
		handle, err := e.OpenPicker(ctx, roundtrip.KindRelatedUsers, "UserIds", 0)
		Expect(err).ToNot(HaveOccurred())

		go func() {
			defer GinkgoRecover()
			time.Sleep(10 * time.Millisecond)
			Expect(h.coord.Deliver(handle.Channel, roundtrip.Result{Selection: formstate.Selection{ada}})).To(Succeed())
		}()

		awaitCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		applied, err := e.AwaitPicker(awaitCtx, handle)
		Expect(err).ToNot(HaveOccurred())
		Expect(applied).To(BeTrue())
		Expect(e.RelatedUsers()).To(HaveLen(1))
	})

	It("rejects a second picker while one is open", func() {
		_, err := e.OpenPicker(ctx, roundtrip.KindMachines, "ThingIds", 0)
		Expect(err).ToNot(HaveOccurred())

		_, err = e.OpenPicker(ctx, roundtrip.KindRelatedUsers, "UserIds", 0)
		Expect(err).To(MatchError(roundtrip.ErrRoundTripInFlight))
	})

	It("refuses a user picker without a machine", func() {
		e.SetMachines(ctx, nil)

		_, err := e.OpenPicker(ctx, roundtrip.KindRelatedUsers, "UserIds", 0)
		Expect(formerror.IsValidation(err)).To(BeTrue())
		Expect(h.coord.State()).To(Equal(roundtrip.StateIdle))
	})

	It("drops a pending picker when another template is selected", func() {
		handle, err := e.OpenPicker(ctx, roundtrip.KindMachines, "ThingIds", 0)
		Expect(err).ToNot(HaveOccurred())

		Expect(e.SelectTemplate(ctx, 3)).To(Succeed())
		Expect(h.coord.Deliver(handle.Channel, roundtrip.Result{})).To(MatchError(roundtrip.ErrUnknownChannel))
	})

	Context("when the form is rebuilt while the picker is open", func() {
		It("restores the snapshot and applies the result", func() {
			handle, err := e.OpenPicker(ctx, roundtrip.KindAssignedUser, "AssigneeId", 120)
			Expect(err).ToNot(HaveOccurred())

			rebuilt := h.remount()
			Expect(h.coord.Deliver(handle.Channel, roundtrip.Result{Selection: formstate.Selection{ada}})).To(Succeed())

			Expect(rebuilt.SelectTemplate(ctx, 12)).To(Succeed())

			Expect(valueOf(rebuilt, "Details")).To(Equal(formvalue.Text("belt snapped")))
			Expect(rebuilt.ActionName()).To(Equal("Jam"))
			Expect(rebuilt.Machines()).To(Equal(formstate.Selection{{ID: 42, DisplayName: "Press1"}}))
			assignee, ok := rebuilt.AssignedUser()
			Expect(ok).To(BeTrue())
			Expect(assignee.ID).To(Equal(100))
			Expect(h.scroller.requested()).To(Equal([]float64{120}))
		})

		It("keeps the restored values when the template cannot be loaded", func() {
			handle, err := e.OpenPicker(ctx, roundtrip.KindAssignedUser, "AssigneeId", 80)
			Expect(err).ToNot(HaveOccurred())

			rebuilt := h.remount()
			Expect(h.coord.Deliver(handle.Channel, roundtrip.Result{Selection: formstate.Selection{ada}})).To(Succeed())
			h.backend.mu.Lock()
			h.backend.templateErr = errors.New("503")
			h.backend.mu.Unlock()

			applied, err := rebuilt.OnFocus(ctx)
			Expect(applied).To(BeTrue())
			Expect(formerror.IsFetch(err)).To(BeTrue())
			Expect(h.coord.State()).To(Equal(roundtrip.StateIdle))
			Expect(rebuilt.SectionError(engine.SectionTemplate)).To(Equal("Could not load template"))
			Expect(valueOf(rebuilt, "Details")).To(Equal(formvalue.Text("belt snapped")))
			Expect(rebuilt.ActionName()).To(Equal("Jam"))
			Expect(rebuilt.Machines()).To(Equal(formstate.Selection{{ID: 42, DisplayName: "Press1"}}))
			assignee, ok := rebuilt.AssignedUser()
			Expect(ok).To(BeTrue())
			Expect(assignee.ID).To(Equal(100))
			Expect(h.scroller.requested()).To(Equal([]float64{80}))

			_, err = rebuilt.OpenPicker(ctx, roundtrip.KindMachines, "ThingIds", 0)
			Expect(formerror.IsValidation(err)).To(BeTrue(), "no template is attached yet")
			Expect(h.coord.State()).To(Equal(roundtrip.StateIdle))

			h.backend.mu.Lock()
			h.backend.templateErr = nil
			h.backend.mu.Unlock()

			Expect(rebuilt.SelectTemplate(ctx, 12)).To(Succeed())
			Expect(rebuilt.Template().ID).To(Equal(12))
			Expect(rebuilt.SectionError(engine.SectionTemplate)).To(BeEmpty())
			Expect(valueOf(rebuilt, "Details")).To(Equal(formvalue.Text("belt snapped")))
			Expect(intOf(rebuilt, "AssigneeId")).To(Equal(100))

			handle, err = rebuilt.OpenPicker(ctx, roundtrip.KindMachines, "ThingIds", 0)
			Expect(err).ToNot(HaveOccurred())
			Expect(handle).ToNot(BeNil())
		})

		It("keeps the record being edited across a rebuild", func() {
			h.backend.detail = models.Record{"TypeId": 12}
			Expect(e.OpenForEdit(ctx, models.Record{"Id": 7, "Name": "Jam", "MachineId": 42, "MachineName": "Press1"})).To(Succeed())
			Expect(e.IsEditMode()).To(BeTrue())

			handle, err := e.OpenPicker(ctx, roundtrip.KindRelatedUsers, "UserIds", 0)
			Expect(err).ToNot(HaveOccurred())

			rebuilt := h.remount()
			Expect(h.coord.Deliver(handle.Channel, roundtrip.Result{Selection: formstate.Selection{ada}})).To(Succeed())
			_, err = rebuilt.OnFocus(ctx)
			Expect(err).ToNot(HaveOccurred())

			Expect(rebuilt.IsEditMode()).To(BeTrue())
			Expect(rebuilt.RelatedUsers()).To(Equal(formstate.Selection{ada}))
		})

		It("restores the snapshot when the picker was dismissed", func() {
			_, err := e.OpenPicker(ctx, roundtrip.KindMachines, "ThingIds", 0)
			Expect(err).ToNot(HaveOccurred())

			rebuilt := h.remount()
			applied, err := rebuilt.OnFocus(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(applied).To(BeTrue())

			Expect(valueOf(rebuilt, "Details")).To(Equal(formvalue.Text("belt snapped")))
			Expect(rebuilt.Machines()).To(HaveLen(1))
			Expect(h.coord.State()).To(Equal(roundtrip.StateIdle))
		})
	})
})
