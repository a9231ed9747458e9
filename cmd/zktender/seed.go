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

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/zktender/tender"
)

func seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Provision the demo tender instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *tender.Engine) error {
				for _, spec := range tender.DemoTenders {
					err := engine.Seed(ctx, spec)
					if errors.Is(err, tender.ErrTenderExists) {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: already exists\n", spec.ID)
						continue
					}
					if err != nil {
						return fmt.Errorf("seed %s: %w", spec.ID, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: seeded in phase %s\n", spec.ID, spec.Phase)
				}
				return nil
			})
		},
	}
}
