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

var _ = Describe("Edit hydration", func() {
	var (
		h   *harness
		e   *engine.Engine
		ctx context.Context
		row models.Record
	)

	BeforeEach(func() {
		h = newHarness()
		e = h.engine
		ctx = context.Background()
		row = models.Record{"Id": 7, "Name": "Jam", "MachineId": 42, "MachineName": "Press1"}
	})

	openSlowly := func() (chan struct{}, chan error) {
		gate := make(chan struct{})
		h.backend.detailGate = gate
		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- e.OpenForEdit(ctx, row)
		}()
		Eventually(func() int { return h.backend.Calls("GetActionDetail") }).Should(Equal(1))

		return gate, done
	}

	It("merges a slow detail fetch into the row projection", func() {
		h.backend.detail = models.Record{"TypeId": 3, "CategoryId": 9, "Description": "desc"}
		gate, done := openSlowly()

		Expect(e.IsEditMode()).To(BeTrue())
		Expect(valueOf(e, "Name")).To(Equal(formvalue.Text("Jam")))
		Expect(e.Machines()).To(Equal(formstate.Selection{{ID: 42, DisplayName: "Press1"}}))

		close(gate)
		Eventually(done).Should(Receive(BeNil()))

		values := e.Values()
		Expect(values).To(HaveKeyWithValue("MachineId", formvalue.Int(42)))
		Expect(values).To(HaveKeyWithValue("MachineName", formvalue.Text("Press1")))
		Expect(values).To(HaveKeyWithValue("Name", formvalue.Text("Jam")))
		Expect(values).To(HaveKeyWithValue("TypeId", formvalue.Int(3)))
		Expect(values).To(HaveKeyWithValue("CategoryId", formvalue.Int(9)))
		Expect(values).To(HaveKeyWithValue("Description", formvalue.Text("desc")))
		Expect(e.Template().ID).To(Equal(3))
		Expect(e.ActionName()).To(Equal("Jam"))
	})

	It("keeps edits made while the detail was loading", func() {
		h.backend.detail = models.Record{"TypeId": 3, "CategoryId": 9}
		gate, done := openSlowly()

		e.Set("CategoryId", formvalue.Int(4))
		close(gate)
		Eventually(done).Should(Receive(BeNil()))

		Expect(intOf(e, "CategoryId")).To(Equal(4))
	})

	It("resolves stored user ids to names", func() {
		h.backend.detail = models.Record{
			"TypeId":     12,
			"AssigneeId": 101,
			"UserIds":    `[{"Id":100},{"Id":999}]`,
		}

		Expect(e.OpenForEdit(ctx, row)).To(Succeed())

		assignee, ok := e.AssignedUser()
		Expect(ok).To(BeTrue())
		Expect(assignee).To(Equal(formstate.Ref{ID: 101, DisplayName: "Alan Turing"}))
		Expect(e.RelatedUsers()).To(Equal(formstate.Selection{
			{ID: 100, DisplayName: "Ada Lovelace"},
			{ID: 999, DisplayName: "999"},
		}))
		Expect(e.ShiftOptions()).To(HaveLen(2))
	})

	It("falls back to raw ids when the users cannot be loaded", func() {
		h.backend.usersErr = errors.New("down")
		h.backend.detail = models.Record{"TypeId": 12, "AssigneeId": "101"}

		Expect(e.OpenForEdit(ctx, row)).To(Succeed())

		assignee, ok := e.AssignedUser()
		Expect(ok).To(BeTrue())
		Expect(assignee.DisplayName).To(Equal("101"))
	})

	It("keeps the row projection when the detail cannot be loaded", func() {
		h.backend.detailErr = errors.New("not found")

		Expect(e.OpenForEdit(ctx, row)).To(Succeed())
		Expect(e.SectionError(engine.SectionDetail)).To(Equal("Could not load action details"))
		Expect(valueOf(e, "Name")).To(Equal(formvalue.Text("Jam")))
		Expect(e.Machines()).To(HaveLen(1))
		Expect(e.Template()).To(BeNil())
	})

	It("refuses a row without an id", func() {
		err := e.OpenForEdit(ctx, models.Record{"Name": "Jam"})
		Expect(formerror.IsValidation(err)).To(BeTrue())
	})

	It("drops template defaults computed for a superseded edit", func() {
		h.backend.detail = models.Record{"TypeId": 12}
		now, entered, release := blockingClock()
		racy := h.mountWithClock(now)

		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- racy.OpenForEdit(ctx, row)
		}()
		Eventually(entered).Should(BeClosed())

		Expect(racy.SelectTemplate(ctx, 3)).To(Succeed())
		close(release)

		Eventually(done).Should(Receive(MatchError(engine.ErrSuperseded)))
		Expect(racy.IsEditMode()).To(BeFalse())
		Expect(racy.Template().ID).To(Equal(3))
		Expect(racy.Values()).To(HaveLen(5))
		Expect(racy.Values()).ToNot(HaveKey("ShiftId"))
	})

	It("drops a hydration superseded by a template selection", func() {
		h.backend.detail = models.Record{"TypeId": 12}
		gate, done := openSlowly()

		Expect(e.SelectTemplate(ctx, 3)).To(Succeed())
		close(gate)

		Eventually(done).Should(Receive(MatchError(engine.ErrSuperseded)))
		Expect(e.IsEditMode()).To(BeFalse())
		Expect(e.Template().ID).To(Equal(3))
		Expect(e.Values()).ToNot(HaveKey("MachineId"))
	})
})
