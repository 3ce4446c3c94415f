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

package roundtrip

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formstate"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
)

// Snapshot is the engine state saved right before a picker departure. It is
// the only thing that survives if the host tears the form down while the
// picker is open.
type Snapshot struct {
	FormValues         map[string]formvalue.Value
	ActionName         string
	SelectedMachines   formstate.Selection
	SelectedUsers      formstate.Selection
	AssignedUser       formstate.Selection
	SelectedTemplateID int
	ShiftOptions       []formstate.ShiftOption
	ScrollPosition     float64
	EditID             int
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() (*Snapshot, error) {
	if s == nil {
		return nil, nil
	}

	out := &Snapshot{}
	if err := deepcopy.Copy(out, s); err != nil {
		return nil, fmt.Errorf("failed to copy snapshot: %w", err)
	}

	return out, nil
}
