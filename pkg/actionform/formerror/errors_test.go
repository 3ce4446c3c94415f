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

package formerror_test

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formerror"
)

func TestFormerror(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Formerror Suite")
}

var _ = Describe("Error taxonomy", func() {
	It("identifies categories through wrapping", func() {
		err := fmt.Errorf("submit: %w", formerror.NewValidation("StatusId", "Please select a status"))
		Expect(formerror.IsValidation(err)).To(BeTrue())
		Expect(formerror.IsSubmission(err)).To(BeFalse())
		Expect(formerror.UserMessage(err)).To(Equal("Please select a status"))
	})

	It("names the failed file in upload errors", func() {
		cause := errors.New("413 payload too large")
		err := formerror.NewUpload("Attachments", "photo.jpg", cause)
		Expect(formerror.IsUpload(err)).To(BeTrue())
		Expect(formerror.UserMessage(err)).To(ContainSubstring("photo.jpg"))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("falls back to a generic submission message", func() {
		Expect(formerror.UserMessage(formerror.NewSubmission("", errors.New("500")))).To(Equal(formerror.GenericSubmissionMessage))
		Expect(formerror.UserMessage(formerror.NewSubmission("Machine is locked", nil))).To(Equal("Machine is locked"))
		Expect(formerror.UserMessage(errors.New("plain"))).To(Equal(formerror.GenericSubmissionMessage))
		Expect(formerror.UserMessage(nil)).To(BeEmpty())
	})

	It("marks fetch errors", func() {
		err := formerror.NewFetch("shifts", errors.New("timeout"))
		Expect(formerror.IsFetch(err)).To(BeTrue())
		Expect(formerror.UserMessage(err)).To(Equal("Could not load shifts"))
	})
})
