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

package engine

import (
	"context"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/roundtrip"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
	"github.com/united-manufacturing-hub/actionform/pkg/models"
)

type TemplateSource interface {
	ListTemplates(ctx context.Context) ([]template.Summary, error)
	GetTemplateDetail(ctx context.Context, id int) (*template.Template, error)
}

type CatalogSource interface {
	ListCategories(ctx context.Context, templateName string) ([]models.Option, error)
	ListStatuses(ctx context.Context) ([]models.Option, error)
	ListLabels(ctx context.Context, clientID int) ([]models.Option, error)
}

type MachineSource interface {
	ListMachinesForPlant(ctx context.Context, plantID int) ([]models.Machine, error)
	ListUsersForMachine(ctx context.Context, machineID int) ([]models.User, error)
	ListShiftsForMachine(ctx context.Context, machineID int, mode string) ([]models.Shift, error)
}

type MediaSource interface {
	UploadAttachment(ctx context.Context, req models.UploadRequest) ([]models.MediaResult, error)
}

type RecordSource interface {
	GetActionDetail(ctx context.Context, id int) (models.Record, error)
	CreateAction(ctx context.Context, machineID int, payload models.Payload) (*models.ActionResult, error)
	UpdateAction(ctx context.Context, id int, payload models.Payload) (*models.ActionResult, error)
}

// IdentitySource returns the signed-in user's name. An empty name means the
// session has none yet.
type IdentitySource interface {
	CurrentUsername(ctx context.Context) (string, error)
}

// Navigator is the host's routing layer.
type Navigator interface {
	roundtrip.Navigator
	GoBack(ctx context.Context, params roundtrip.Params) error
}

// Backend bundles every data source. pkg/backend.Client satisfies it.
type Backend interface {
	TemplateSource
	CatalogSource
	MachineSource
	MediaSource
	RecordSource
	IdentitySource
}

// Dependencies are the collaborators of one engine instance. Coordinator
// may be shared with a later instance of the same form so a result
// delivered after a teardown still reaches the remounted form.
type Dependencies struct {
	Templates TemplateSource
	Catalog   CatalogSource
	Machines  MachineSource
	Media     MediaSource
	Records   RecordSource
	Identity  IdentitySource

	Navigator   Navigator
	Scroller    roundtrip.Scroller
	Coordinator *roundtrip.Coordinator
}

// FromBackend fills every data source from one backend.
func FromBackend(b Backend, nav Navigator, scroller roundtrip.Scroller, coord *roundtrip.Coordinator) Dependencies {
	return Dependencies{
		Templates:   b,
		Catalog:     b,
		Machines:    b,
		Media:       b,
		Records:     b,
		Identity:    b,
		Navigator:   nav,
		Scroller:    scroller,
		Coordinator: coord,
	}
}
