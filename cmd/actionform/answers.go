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

package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Answers is the non-interactive input of the submit command.
type Answers struct {
	Template     int                `yaml:"template"`
	Edit         int                `yaml:"edit,omitempty"`
	ActionName   string             `yaml:"actionName"`
	Machines     []int              `yaml:"machines"`
	RelatedUsers []int              `yaml:"relatedUsers,omitempty"`
	Assignee     int                `yaml:"assignee,omitempty"`
	Values       map[string]any     `yaml:"values,omitempty"`
	Attachments  []AttachmentAnswer `yaml:"attachments,omitempty"`
}

type AttachmentAnswer struct {
	Field    string `yaml:"field"`
	Path     string `yaml:"path"`
	MimeType string `yaml:"mimeType,omitempty"`
}

// LoadAnswers reads and checks an answers file. Attachment paths are made
// absolute relative to the file.
func LoadAnswers(path string) (*Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers %s: %w", path, err)
	}

	var a Answers
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse answers %s: %w", path, err)
	}
	if a.Template <= 0 && a.Edit <= 0 {
		return nil, errors.New("answers need a template or an action to edit")
	}

	base := filepath.Dir(path)
	for i := range a.Attachments {
		att := &a.Attachments[i]
		if att.Field == "" || att.Path == "" {
			return nil, fmt.Errorf("attachment %d needs a field and a path", i)
		}
		if !filepath.IsAbs(att.Path) {
			att.Path = filepath.Join(base, att.Path)
		}
		if att.MimeType == "" {
			att.MimeType = mime.TypeByExtension(filepath.Ext(att.Path))
		}
		if att.MimeType == "" {
			att.MimeType = "application/octet-stream"
		}
	}

	return &a, nil
}
