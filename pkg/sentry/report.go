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

package sentry

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type IssueType string

const (
	IssueTypeWarning IssueType = "warning"
	IssueTypeError   IssueType = "error"
)

// ReportIssue logs err and forwards it to Sentry when reporting is enabled.
func ReportIssue(err error, issueType IssueType, log *zap.SugaredLogger) {
	ReportIssueWithContext(err, issueType, log, nil)
}

func ReportIssuef(issueType IssueType, log *zap.SugaredLogger, template string, args ...interface{}) {
	ReportIssue(fmt.Errorf(template, args...), issueType, log)
}

// ReportIssueWithContext reports an issue with additional context data that will be included in Sentry.
func ReportIssueWithContext(err error, issueType IssueType, log *zap.SugaredLogger, context map[string]interface{}) {
	if err == nil {
		return
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	fields := make([]interface{}, 0, len(context)*2)
	for k, v := range context {
		fields = append(fields, k, v)
	}

	switch issueType {
	case IssueTypeError:
		log.Errorw(err.Error(), fields...)
		send(sentry.LevelError, err, context)
	default:
		log.Warnw(err.Error(), fields...)
		send(sentry.LevelWarning, err, context)
	}
}

// ReportFetchError reports a failed background fetch of one of the engine's collaborators.
func ReportFetchError(log *zap.SugaredLogger, source string, templateID int, err error) {
	ReportIssueWithContext(err, IssueTypeWarning, log, map[string]interface{}{
		"source":      source,
		"template_id": templateID,
	})
}

// ReportSubmissionError reports a failed upload or create/update call.
func ReportSubmissionError(log *zap.SugaredLogger, operation string, templateID int, err error) {
	ReportIssueWithContext(err, IssueTypeError, log, map[string]interface{}{
		"operation":   operation,
		"template_id": templateID,
	})
}
