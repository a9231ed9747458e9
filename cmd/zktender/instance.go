// Copyright 2025 Blink Labs Software
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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/zktender/internal/config"
	"github.com/blinklabs-io/zktender/internal/node"
	"github.com/blinklabs-io/zktender/tender"
)

// withEngine opens the configured storage for the duration of fn
func withEngine(
	cmd *cobra.Command,
	fn func(ctx context.Context, engine *tender.Engine) error,
) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	logger := toolRun()
	// Metrics are not exported by tooling commands
	n, err := node.Open(cmd.Context(), cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	return errors.Join(fn(cmd.Context(), n.Engine()), n.Stop())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func instanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Inspect and manage tender instances",
	}
	cmd.AddCommand(
		instanceListCommand(),
		instanceShowCommand(),
		instanceCreateCommand(),
		instanceAdvanceCommand(),
		instanceHistoryCommand(),
		instanceExportCommand(),
	)
	return cmd
}

func instanceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tender instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *tender.Engine) error {
				tenders, err := engine.Tenders(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tPHASE\tSUBMISSIONS\tNAME")
				for _, t := range tenders {
					fmt.Fprintf(
						tw,
						"%s\t%s\t%d\t%s\n",
						t.ID,
						t.Phase,
						t.TotalSubmissions,
						t.Name,
					)
				}
				return tw.Flush()
			})
		},
	}
}

func instanceShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the public state of a tender instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *tender.Engine) error {
				state, err := engine.PublicState(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), state)
			})
		},
	}
}

func instanceCreateCommand() *cobra.Command {
	var name, description, phase string
	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a tender instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := tender.ParsePhase(phase)
			if err != nil {
				return err
			}
			return withEngine(cmd, func(ctx context.Context, engine *tender.Engine) error {
				t, err := engine.CreateTender(ctx, tender.TenderSpec{
					ID:          args[0],
					Name:        name,
					Description: description,
					Phase:       p,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&phase, "phase", string(tender.PhaseSubmission), "initial phase")
	return cmd
}

func instanceAdvanceCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "advance <id> <phase>",
		Short: "Move a tender instance to another phase",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *tender.Engine) error {
				previous, err := engine.AdvancePhase(ctx, args[0], args[1], reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(
					cmd.OutOrStdout(),
					"%s: %s -> %s\n",
					args[0],
					previous,
					args[1],
				)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the phase history")
	return cmd
}

func instanceHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the phase history of a tender instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *tender.Engine) error {
				transitions, err := engine.PhaseHistory(ctx, args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tFROM\tTO\tFORWARD\tREASON")
				for _, pt := range transitions {
					fmt.Fprintf(
						tw,
						"%s\t%s\t%s\t%t\t%s\n",
						pt.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
						pt.FromPhase,
						pt.ToPhase,
						pt.Forward,
						pt.Reason,
					)
				}
				return tw.Flush()
			})
		},
	}
}
