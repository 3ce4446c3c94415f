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

package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/united-manufacturing-hub/actionform/pkg/models"
	"github.com/united-manufacturing-hub/actionform/pkg/safejson"
)

// ErrUploadRejected is returned when the backend answers an upload with an
// empty list or an invalid first element.
var ErrUploadRejected = errors.New("upload was rejected by the server")

// UploadAttachment sends one local file as multipart form data. The first
// element of the response is authoritative.
func (c *Client) UploadAttachment(ctx context.Context, req models.UploadRequest) ([]models.MediaResult, error) {
	path := strings.TrimPrefix(req.URI, "file://")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", req.Name, err)
	}
	defer func() { _ = file.Close() }()

	name := req.Name
	if name == "" {
		name = filepath.Base(path)
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	respBody, err := c.do(ctx, http.MethodPost, MediaEndpoint, writer.FormDataContentType(), body.Bytes())
	if err != nil {
		return nil, err
	}

	var results []models.MediaResult
	if err := safejson.Unmarshal(respBody, &results); err != nil {
		return nil, fmt.Errorf("POST %s: failed to decode response: %w", MediaEndpoint, err)
	}
	if len(results) == 0 || !results[0].IsValid {
		return results, fmt.Errorf("%w: %s", ErrUploadRejected, name)
	}

	return results, nil
}
