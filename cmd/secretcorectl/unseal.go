// secretcore - M2M secrets management core
// Copyright (C) 2025 secretcore authors
//
// This file is part of secretcore.
//
// secretcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// secretcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with secretcore. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/secretcore/pkg/cryptoutil"
)

var unsealCmd = &cobra.Command{
	Use:   "unseal [share...]",
	Short: "Submit key shares toward unsealing the core",
	Long: `unseal submits one or more encoded key shares. Since each
invocation constructs a fresh Core bound to storage, threshold
progress does not persist across separate invocations: pass every
share the process needs to reach the configured threshold in a single
call.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUnseal,
}

func init() {
	rootCmd.AddCommand(unsealCmd)
}

func runUnseal(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	shares := make([]cryptoutil.Share, len(args))
	for i, arg := range args {
		share, err := cryptoutil.DecodeShare(arg)
		if err != nil {
			return fmt.Errorf("decode share %d: %w", i+1, err)
		}
		shares[i] = share
	}

	c, store, err := openCore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	for i, share := range shares {
		st, err := c.SysUnseal(ctx, share)
		if err != nil {
			return fmt.Errorf("sys.unseal (share %d): %w", i+1, err)
		}
		fmt.Printf("Progress: %d/%d shares. Sealed: %v\n", st.Progress, st.Threshold, st.Sealed)
		if !st.Sealed {
			break
		}
	}
	return nil
}
