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

package formvalue

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Origin is where the user picked an attachment from.
type Origin string

const (
	OriginFile    Origin = "file"
	OriginCamera  Origin = "camera"
	OriginGallery Origin = "gallery"
)

// UploadState is the lifecycle of one attachment upload.
type UploadState string

const (
	UploadPending   UploadState = "pending"
	UploadUploading UploadState = "uploading"
	UploadUploaded  UploadState = "uploaded"
	UploadFailed    UploadState = "failed"
)

// ErrInvalidTransition is returned for any upload state change outside
// pending→uploading→{uploaded|failed} and failed→uploading.
var ErrInvalidTransition = errors.New("invalid upload state transition")

// Attachment is one entry of an attachment-list value. Key is generated on
// creation and stays stable for the lifetime of the entry.
type Attachment struct {
	Key         string
	SourceURI   string
	DisplayName string
	MimeType    string
	Origin      Origin
	UploadState UploadState
	RemoteURL   string
	PreviewURL  string
	RemoteID    string
	Error       string
}

// NewAttachment returns a pending attachment with a fresh key.
func NewAttachment(sourceURI, displayName, mimeType string, origin Origin) Attachment {
	return Attachment{
		Key:         uuid.NewString(),
		SourceURI:   sourceURI,
		DisplayName: displayName,
		MimeType:    mimeType,
		Origin:      origin,
		UploadState: UploadPending,
	}
}

// NeedsUpload reports whether the attachment still has to be sent.
func (a Attachment) NeedsUpload() bool {
	return a.UploadState == UploadPending || a.UploadState == UploadFailed
}

func (a *Attachment) transition(to UploadState) error {
	allowed := false
	switch a.UploadState {
	case UploadPending, UploadFailed:
		allowed = to == UploadUploading
	case UploadUploading:
		allowed = to == UploadUploaded || to == UploadFailed
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s (attachment %s)", ErrInvalidTransition, a.UploadState, to, a.Key)
	}
	a.UploadState = to

	return nil
}

// BeginUpload moves a pending or failed attachment to uploading and clears
// any previous error.
func (a *Attachment) BeginUpload() error {
	if err := a.transition(UploadUploading); err != nil {
		return err
	}
	a.Error = ""

	return nil
}

// CompleteUpload records the remote identity of a finished upload.
func (a *Attachment) CompleteUpload(remoteID, remoteURL, previewURL string) error {
	if err := a.transition(UploadUploaded); err != nil {
		return err
	}
	a.RemoteID = remoteID
	a.RemoteURL = remoteURL
	a.PreviewURL = previewURL
	a.Error = ""

	return nil
}

// FailUpload marks the upload failed with the given message.
func (a *Attachment) FailUpload(message string) error {
	if err := a.transition(UploadFailed); err != nil {
		return err
	}
	a.Error = message

	return nil
}
