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
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/zktender/archive"
	"github.com/blinklabs-io/zktender/tender"
)

func instanceExportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write the audit bundle of a tender instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = args[0] + ".tar.zst"
			}
			return withEngine(cmd, func(ctx context.Context, engine *tender.Engine) error {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				manifest, err := archive.Export(ctx, engine, args[0], f, time.Now())
				if closeErr := f.Close(); closeErr != nil {
					err = errors.Join(err, closeErr)
				}
				if err != nil {
					_ = os.Remove(output)
					return err
				}
				fmt.Fprintf(
					cmd.OutOrStdout(),
					"wrote %d entries for %s to %s\n",
					len(manifest.Entries)+1,
					manifest.TenderID,
					output,
				)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <id>.tar.zst)")
	return cmd
}

func archiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Work with tender audit bundles",
	}
	cmd.AddCommand(archiveInspectCommand())
	return cmd
}

func archiveInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "List the contents of an audit bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			bundle, err := archive.Read(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(
				out,
				"tender: %s\nphase: %s\ncreated: %s\n\n",
				bundle.Manifest.TenderID,
				bundle.Manifest.Phase,
				bundle.Manifest.CreatedAt.Format(time.RFC3339),
			)
			names := make([]string, 0, len(bundle.Entries))
			for name := range bundle.Entries {
				names = append(names, name)
			}
			sort.Strings(names)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTRY\tBYTES")
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%d\n", name, len(bundle.Entries[name]))
			}
			return tw.Flush()
		},
	}
}
