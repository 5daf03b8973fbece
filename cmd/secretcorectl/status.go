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
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the seal status of the configured storage backend",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, store, err := openCore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	status := c.SysStatus(ctx)
	fmt.Printf("Initialized: %v\n", status.Initialized)
	fmt.Printf("Sealed:      %v\n", status.Sealed)
	if status.Initialized {
		fmt.Printf("Progress:    %d/%d\n", status.Progress, status.Threshold)
		fmt.Printf("Shares:      %d total\n", status.TotalShares)
	}
	return nil
}
