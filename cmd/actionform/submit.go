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
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/classifier"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/engine"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formerror"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formstate"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/formvalue"
	"github.com/united-manufacturing-hub/actionform/pkg/actionform/roundtrip"
	"github.com/united-manufacturing-hub/actionform/pkg/backend"
	"github.com/united-manufacturing-hub/actionform/pkg/logger"
	"github.com/united-manufacturing-hub/actionform/pkg/models"
)

func newSubmitCommand(o *rootOptions) *cobra.Command {
	var answersPath string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Fill an action form from an answers file and save it.",
		Example: `
actionform submit -f downtime.yaml
actionform submit -f downtime.yaml --config plant.yaml --log-level debug
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			answers, err := LoadAnswers(answersPath)
			if err != nil {
				return err
			}

			return o.run(func(ctx context.Context, client *backend.Client) error {
				host := newConsoleHost(cmd.OutOrStdout(), logger.For(logger.ComponentCLI))
				coord := roundtrip.NewCoordinator(host, roundtrip.Options{
					ScrollAttempts: o.cfg.Engine.ScrollRetries,
					ScrollBackoff:  o.cfg.Engine.ScrollBackoff,
				}, nil)
				host.attach(coord)

				e := engine.New(engine.FromBackend(client, host, host, coord), engine.OptionsFromConfig(o.cfg), nil)

				res, err := fillAndSubmit(ctx, e, host, answers)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), formerror.UserMessage(err))

					return err
				}
				printResult(cmd.OutOrStdout(), res)

				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&answersPath, "file", "f", "", "Answers file (YAML).")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// fillAndSubmit drives the form the way a user would: template first, then
// machines and users through their pickers, then plain values and files.
func fillAndSubmit(ctx context.Context, e *engine.Engine, host *consoleHost, a *Answers) (*engine.SubmitResult, error) {
	if a.Edit > 0 {
		if err := e.OpenForEdit(ctx, models.Record{engine.RowIDKey: a.Edit}); err != nil {
			return nil, err
		}
		if msg := e.SectionError(engine.SectionDetail); msg != "" {
			return nil, fmt.Errorf("action %d: %s", a.Edit, msg)
		}
	} else if err := e.SelectTemplate(ctx, a.Template); err != nil {
		return nil, err
	}

	if len(a.Machines) > 0 {
		machines, err := e.ListMachines(ctx)
		if err != nil {
			return nil, err
		}
		sel, err := machineSelection(machines, a.Machines)
		if err != nil {
			return nil, err
		}
		if err := pick(ctx, e, host, roundtrip.KindMachines, classifier.RoleRelatedMachines, sel); err != nil {
			return nil, err
		}
	}

	if len(a.RelatedUsers) > 0 || a.Assignee > 0 {
		users, err := e.EligibleUsers(ctx)
		if err != nil {
			return nil, err
		}
		if len(a.RelatedUsers) > 0 {
			if err := pick(ctx, e, host, roundtrip.KindRelatedUsers, classifier.RoleRelatedUsers, userSelection(users, a.RelatedUsers)); err != nil {
				return nil, err
			}
		}
		if a.Assignee > 0 {
			if err := pick(ctx, e, host, roundtrip.KindAssignedUser, classifier.RoleAssignedUser, userSelection(users, []int{a.Assignee})); err != nil {
				return nil, err
			}
		}
	}

	if a.ActionName != "" {
		e.SetActionName(a.ActionName)
	}
	for field, raw := range a.Values {
		e.Set(field, formvalue.FromAny(raw))
	}
	for _, att := range a.Attachments {
		uri := "file://" + att.Path
		if _, err := e.AddAttachment(att.Field, uri, filepath.Base(att.Path), att.MimeType, formvalue.OriginFile); err != nil {
			return nil, fmt.Errorf("attachment %s: %w", att.Path, err)
		}
	}

	return e.Submit(ctx)
}

// pick runs one picker round trip answered with sel.
func pick(ctx context.Context, e *engine.Engine, host *consoleHost, kind roundtrip.SelectionKind, role classifier.Role, sel formstate.Selection) error {
	field, _ := e.FieldFor(role)
	host.queue(kind, sel)

	handle, err := e.OpenPicker(ctx, kind, field, 0)
	if err != nil {
		return err
	}
	_, err = e.AwaitPicker(ctx, handle)

	return err
}

func machineSelection(machines []models.Machine, ids []int) (formstate.Selection, error) {
	byID := make(map[int]models.Machine, len(machines))
	for _, m := range machines {
		byID[m.ID] = m
	}

	sel := make(formstate.Selection, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("machine %d does not belong to this plant", id)
		}
		ref := formstate.Ref{ID: m.ID, DisplayName: m.DisplayName}
		if m.Type != "" {
			ref.Extra = map[string]any{"Type": m.Type}
		}
		sel = append(sel, ref)
	}

	return sel, nil
}

// userSelection names the given ids from the eligible users; unknown ids
// keep their number as name.
func userSelection(users []models.User, ids []int) formstate.Selection {
	byID := make(map[int]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	sel := make(formstate.Selection, 0, len(ids))
	for _, id := range ids {
		name := fmt.Sprint(id)
		if u, ok := byID[id]; ok {
			name = u.Label()
		}
		sel = append(sel, formstate.Ref{ID: id, DisplayName: name})
	}

	return sel
}

func printResult(out io.Writer, res *engine.SubmitResult) {
	verb := "created"
	if res.Mode == engine.ModeUpdate {
		verb = "updated"
	}
	fmt.Fprintf(out, "action %d %s", res.ID, verb)
	if res.Message != "" {
		fmt.Fprintf(out, ": %s", res.Message)
	}
	fmt.Fprintln(out)
}
