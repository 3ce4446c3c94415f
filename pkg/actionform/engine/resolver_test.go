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
	"github.com/united-manufacturing-hub/actionform/pkg/models"
)

var _ = Describe("Cross-field dependencies", func() {
	var (
		h     *harness
		e     *engine.Engine
		ctx   context.Context
		press = formstate.Selection{{ID: 42, DisplayName: "Press1"}}
	)

	shiftIDs := func() []int {
		ids := make([]int, 0)
		for _, o := range e.ShiftOptions() {
			ids = append(ids, o.ID)
		}

		return ids
	}

	BeforeEach(func() {
		h = newHarness()
		e = h.engine
		ctx = context.Background()
		Expect(e.SelectTemplate(ctx, 12)).To(Succeed())
	})

	Context("machines", func() {
		It("projects the selection into the machines field", func() {
			e.SetMachines(ctx, press)

			Expect(valueOf(e, "ThingIds").Text).To(Equal(`[{"DisplayName":"Press1","Id":42}]`))
		})

		It("loads shifts and defaults to the first option", func() {
			e.SetMachines(ctx, press)

			Expect(shiftIDs()).To(Equal([]int{1, 2}))
			Expect(intOf(e, "ShiftId")).To(Equal(1))
		})

		It("keeps the chosen shift when the new machine still offers it", func() {
			e.SetMachines(ctx, press)
			e.Set("ShiftId", formvalue.Int(2))

			e.SetMachines(ctx, formstate.Selection{{ID: 43, DisplayName: "Press2"}})
			Expect(shiftIDs()).To(Equal([]int{2, 3}))
			Expect(intOf(e, "ShiftId")).To(Equal(2))
		})

		It("falls back to the first option when the chosen shift is gone", func() {
			e.SetMachines(ctx, press)
			Expect(valueOf(e, "ShiftId")).To(Equal(formvalue.Int(1)))

			e.SetMachines(ctx, formstate.Selection{{ID: 43, DisplayName: "Press2"}})
			Expect(intOf(e, "ShiftId")).To(Equal(2))
		})

		It("clears the shift when the machine has none", func() {
			e.SetMachines(ctx, press)
			e.SetMachines(ctx, formstate.Selection{{ID: 44, DisplayName: "Saw"}})

			Expect(e.ShiftOptions()).To(BeEmpty())
			Expect(valueOf(e, "ShiftId").IsEmpty()).To(BeTrue())
		})

		It("keeps the previous options and flags the field when the shift fetch fails", func() {
			e.SetMachines(ctx, press)
			h.backend.shiftErr = errors.New("timeout")

			e.SetMachines(ctx, formstate.Selection{{ID: 43, DisplayName: "Press2"}})
			Expect(shiftIDs()).To(Equal([]int{1, 2}))
			Expect(e.FieldError("ShiftId")).To(Equal("Could not load shifts"))
		})

		It("does not refetch when the first machine is unchanged", func() {
			e.SetMachines(ctx, press)
			e.SetMachines(ctx, append(press.Clone(), formstate.Ref{ID: 43, DisplayName: "Press2"}))

			Expect(h.backend.Calls("ListShiftsForMachine")).To(Equal(1))
			Expect(h.backend.Calls("ListUsersForMachine")).To(Equal(1))
		})
	})

	Context("clearing machines", func() {
		It("empties related users and the assignee", func() {
			e.SetMachines(ctx, press)
			Expect(e.SetRelatedUsers(formstate.Selection{{ID: 100, DisplayName: "Ada Lovelace"}})).To(Succeed())
			Expect(e.SetAssignedUser(&formstate.Ref{ID: 101, DisplayName: "Alan Turing"})).To(Succeed())
			Expect(valueOf(e, "AssigneeId")).To(Equal(formvalue.Int(101)))

			e.SetMachines(ctx, nil)

			Expect(e.RelatedUsers()).To(BeEmpty())
			_, assigned := e.AssignedUser()
			Expect(assigned).To(BeFalse())
			Expect(valueOf(e, "UserIds")).To(Equal(formvalue.Text("[]")))
			Expect(valueOf(e, "AssigneeId")).To(Equal(formvalue.Text("")))
			Expect(e.ShiftOptions()).To(BeEmpty())
		})
	})

	Context("switching the first machine", func() {
		grace := formstate.Ref{ID: 102, DisplayName: "Grace Hopper"}

		BeforeEach(func() {
			e.SetMachines(ctx, press)
			Expect(e.SetRelatedUsers(formstate.Selection{{ID: 100, DisplayName: "Ada Lovelace"}, grace})).To(Succeed())
			Expect(e.SetAssignedUser(&formstate.Ref{ID: 101, DisplayName: "Alan Turing"})).To(Succeed())
		})

		It("drops users the new machine does not list", func() {
			e.SetMachines(ctx, formstate.Selection{{ID: 43, DisplayName: "Press2"}})

			Expect(e.RelatedUsers()).To(Equal(formstate.Selection{grace}))
			_, assigned := e.AssignedUser()
			Expect(assigned).To(BeFalse())
			Expect(valueOf(e, "UserIds")).To(Equal(formvalue.Text(`[{"DisplayName":"Grace Hopper","Id":102}]`)))
			Expect(valueOf(e, "AssigneeId")).To(Equal(formvalue.Text("")))
		})

		It("keeps users when the new machine's users cannot be loaded", func() {
			h.backend.usersErr = errors.New("down")
			e.SetMachines(ctx, formstate.Selection{{ID: 43, DisplayName: "Press2"}})

			Expect(e.RelatedUsers()).To(HaveLen(2))
			assignee, assigned := e.AssignedUser()
			Expect(assigned).To(BeTrue())
			Expect(assignee.ID).To(Equal(101))
			Expect(e.SectionError(engine.SectionUsers)).To(Equal("Could not load users"))
		})

		It("keeps users when only further machines are added", func() {
			e.SetMachines(ctx, append(press.Clone(), formstate.Ref{ID: 43, DisplayName: "Press2"}))

			Expect(e.RelatedUsers()).To(HaveLen(2))
			_, assigned := e.AssignedUser()
			Expect(assigned).To(BeTrue())
		})
	})

	Context("users", func() {
		It("requires a machine before users can be picked", func() {
			err := e.SetRelatedUsers(formstate.Selection{{ID: 100}})
			Expect(formerror.IsValidation(err)).To(BeTrue())

			err = e.SetAssignedUser(&formstate.Ref{ID: 100})
			Expect(formerror.IsValidation(err)).To(BeTrue())
		})

		It("serves eligible users from the cache of the first machine", func() {
			e.SetMachines(ctx, press)

			users, err := e.EligibleUsers(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(users).To(HaveLen(2))
			Expect(h.backend.Calls("ListUsersForMachine")).To(Equal(1))
		})

		It("records a section error when users cannot be loaded", func() {
			h.backend.usersErr = errors.New("down")
			e.SetMachines(ctx, press)

			Expect(e.SectionError(engine.SectionUsers)).To(Equal("Could not load users"))
			_, err := e.EligibleUsers(ctx)
			Expect(formerror.IsFetch(err)).To(BeTrue())
		})

		It("returns no users without a machine", func() {
			users, err := e.EligibleUsers(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(users).To(BeEmpty())
		})
	})

	It("lists the machines of the plant", func() {
		machines, err := e.ListMachines(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(machines).To(ContainElement(models.Machine{ID: 42, DisplayName: "Press1"}))
	})
})
