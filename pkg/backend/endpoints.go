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
	"fmt"
	"net/http"
	"net/url"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
	"github.com/united-manufacturing-hub/actionform/pkg/models"
	"github.com/united-manufacturing-hub/actionform/pkg/safejson"
)

var (
	TemplatesEndpoint  Endpoint = "/api/actions/templates"
	CategoriesEndpoint Endpoint = "/api/actions/categories"
	StatusesEndpoint   Endpoint = "/api/actions/statuses"
	LabelsEndpoint     Endpoint = "/api/labels"
	MediaEndpoint      Endpoint = "/api/media/upload"
	AccountEndpoint    Endpoint = "/api/account/me"
)

func templateDetailEndpoint(id int) Endpoint {
	return Endpoint(fmt.Sprintf("%s/%d", TemplatesEndpoint, id))
}

func plantMachinesEndpoint(plantID int) Endpoint {
	return Endpoint(fmt.Sprintf("/api/plants/%d/machines", plantID))
}

func machineUsersEndpoint(machineID int) Endpoint {
	return Endpoint(fmt.Sprintf("/api/machines/%d/users", machineID))
}

func machineShiftsEndpoint(machineID int, mode string) Endpoint {
	return Endpoint(fmt.Sprintf("/api/machines/%d/shifts?mode=%s", machineID, url.QueryEscape(mode)))
}

func machineActionsEndpoint(machineID int) Endpoint {
	return Endpoint(fmt.Sprintf("/api/machines/%d/actions", machineID))
}

func actionEndpoint(id int) Endpoint {
	return Endpoint(fmt.Sprintf("/api/actions/%d", id))
}

func (c *Client) ListTemplates(ctx context.Context) ([]template.Summary, error) {
	list, err := getJSON[[]template.Summary](ctx, c, TemplatesEndpoint)
	if err != nil {
		return nil, err
	}

	return *list, nil
}

// GetTemplateDetail fetches a template and parses its embedded schema.
func (c *Client) GetTemplateDetail(ctx context.Context, id int) (*template.Template, error) {
	endpoint := templateDetailEndpoint(id)
	detail, err := getJSON[models.TemplateDetail](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}

	blob := string(detail.Schema)
	if trimmed := bytes.TrimSpace(detail.Schema); len(trimmed) > 0 && trimmed[0] == '"' {
		if err := safejson.Unmarshal(trimmed, &blob); err != nil {
			return nil, fmt.Errorf("GET %s: schema is not a string: %w", endpoint, err)
		}
	}

	fields, err := template.ParseSchema(blob)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}

	tplID := detail.ID
	if tplID == 0 {
		tplID = id
	}

	return &template.Template{
		ID:          tplID,
		Name:        detail.Name,
		DisplayName: detail.DisplayName,
		Fields:      fields,
	}, nil
}

func (c *Client) ListCategories(ctx context.Context, templateName string) ([]models.Option, error) {
	endpoint := Endpoint(fmt.Sprintf("%s?template=%s", CategoriesEndpoint, url.QueryEscape(templateName)))

	return listOf[models.Option](ctx, c, endpoint)
}

func (c *Client) ListStatuses(ctx context.Context) ([]models.Option, error) {
	return listOf[models.Option](ctx, c, StatusesEndpoint)
}

func (c *Client) ListLabels(ctx context.Context, clientID int) ([]models.Option, error) {
	return listOf[models.Option](ctx, c, Endpoint(fmt.Sprintf("%s?clientId=%d", LabelsEndpoint, clientID)))
}

func (c *Client) ListMachinesForPlant(ctx context.Context, plantID int) ([]models.Machine, error) {
	return listOf[models.Machine](ctx, c, plantMachinesEndpoint(plantID))
}

func (c *Client) ListUsersForMachine(ctx context.Context, machineID int) ([]models.User, error) {
	return listOf[models.User](ctx, c, machineUsersEndpoint(machineID))
}

func (c *Client) ListShiftsForMachine(ctx context.Context, machineID int, mode string) ([]models.Shift, error) {
	return listOf[models.Shift](ctx, c, machineShiftsEndpoint(machineID, mode))
}

func (c *Client) GetActionDetail(ctx context.Context, id int) (models.Record, error) {
	rec, err := getJSON[models.Record](ctx, c, actionEndpoint(id))
	if err != nil {
		return nil, err
	}

	return *rec, nil
}

func (c *Client) CreateAction(ctx context.Context, machineID int, payload models.Payload) (*models.ActionResult, error) {
	return sendJSON[models.ActionResult](ctx, c, http.MethodPost, machineActionsEndpoint(machineID), &payload)
}

func (c *Client) UpdateAction(ctx context.Context, id int, payload models.Payload) (*models.ActionResult, error) {
	return sendJSON[models.ActionResult](ctx, c, http.MethodPut, actionEndpoint(id), &payload)
}

// CurrentUsername returns the signed-in user's name, or "" when the account
// has none.
func (c *Client) CurrentUsername(ctx context.Context) (string, error) {
	account, err := getJSON[models.Account](ctx, c, AccountEndpoint)
	if err != nil {
		return "", err
	}
	if account.Username != "" {
		return account.Username, nil
	}

	return account.Name, nil
}

func listOf[T any](ctx context.Context, c *Client, endpoint Endpoint) ([]T, error) {
	list, err := getJSON[[]T](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}
	if *list == nil {
		return []T{}, nil
	}

	return *list, nil
}
