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
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/united-manufacturing-hub/actionform/pkg/actionform/template"
	"github.com/united-manufacturing-hub/actionform/pkg/backend"
)

func newTemplatesCommand(o *rootOptions) *cobra.Command {
	var showLatency bool

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the action templates of the plant.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(func(ctx context.Context, client *backend.Client) error {
				list, err := client.ListTemplates(ctx)
				if err != nil {
					return err
				}
				if err := printTemplates(cmd.OutOrStdout(), list); err != nil {
					return err
				}
				if showLatency {
					l := backend.Latency()
					fmt.Fprintf(cmd.OutOrStdout(), "\nbackend latency: avg %.0fms, p95 %.0fms, max %.0fms\n", l.AvgMs, l.P95Ms, l.MaxMs)
				}

				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showLatency, "latency", false, "Print backend latency statistics afterwards.")

	return cmd
}

func printTemplates(out io.Writer, list []template.Summary) error {
	sorted := append([]template.Summary(nil), list...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDISPLAY NAME")
	for _, t := range sorted {
		fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, t.DisplayName)
	}

	return w.Flush()
}
