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

var (
	initShares    int
	initThreshold int
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the seal with a fresh Shamir split of the master key",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().IntVar(&initShares, "shares", 5, "total number of key shares")
	initCmd.Flags().IntVar(&initThreshold, "threshold", 3, "number of shares required to unseal")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, store, err := openCore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	shares, err := c.SysInit(ctx, initShares, initThreshold)
	if err != nil {
		return fmt.Errorf("sys.init: %w", err)
	}

	fmt.Printf("Seal initialized with %d shares, threshold %d.\n", initShares, initThreshold)
	fmt.Println("Record each share; they are shown only once:")
	for i, s := range shares {
		fmt.Printf("  Share %d: %s\n", i+1, cryptoutil.EncodeShare(s))
	}
	return nil
}
