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

package logger_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/united-manufacturing-hub/actionform/pkg/logger"
)

var _ = Describe("Logger", func() {
	Context("ParseLevel", func() {
		It("maps known levels and falls back to info", func() {
			Expect(logger.ParseLevel("debug")).To(Equal(zapcore.DebugLevel))
			Expect(logger.ParseLevel("WARN")).To(Equal(zapcore.WarnLevel))
			Expect(logger.ParseLevel("error")).To(Equal(zapcore.ErrorLevel))
			Expect(logger.ParseLevel("PRODUCTION")).To(Equal(zapcore.InfoLevel))
			Expect(logger.ParseLevel("nonsense")).To(Equal(zapcore.InfoLevel))
		})
	})

	Context("PrettyConsoleEncoder", func() {
		It("prints level, component, message and sorted fields including context fields", func() {
			enc := logger.NewPrettyConsoleEncoder(zapcore.EncoderConfig{LineEnding: "\n"})
			enc.AddString("template", "12")

			buf, err := enc.Clone().EncodeEntry(zapcore.Entry{
				Level:      zapcore.InfoLevel,
				LoggerName: logger.ComponentEngine,
				Message:    "template selected",
				Time:       time.Now(),
			}, []zapcore.Field{zap.Int("fields", 9)})
			Expect(err).ToNot(HaveOccurred())
			Expect(buf.String()).To(Equal("[INFO]\t[Engine]\ttemplate selected - fields=9, template=12\n"))
		})
	})

	Context("For", func() {
		It("returns a named logger", func() {
			Expect(logger.For(logger.ComponentResolver)).ToNot(BeNil())
			Expect(logger.OrNop(nil)).ToNot(BeNil())
		})
	})
})
