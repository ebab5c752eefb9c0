// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maskbid/maskbid/pkg/ids"
	"github.com/maskbid/maskbid/pkg/settlement"
)

// reportView is the human-facing rendering of a settlement report.
type reportView struct {
	AuctionID     string `json:"auctionId"`
	Winner        string `json:"winner"`
	WinningAmount string `json:"winningAmount"`
	AmountMinor   string `json:"amountMinor"`
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Encode or decode settlement reports",
	}
	cmd.AddCommand(newReportDecodeCmd(), newReportEncodeCmd())
	return cmd
}

func newReportDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a 96-byte report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := settlement.DecodeReportHex(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reportView{
				AuctionID:     r.AuctionID.String(),
				Winner:        ids.FormatAddress(r.Winner),
				WinningAmount: settlement.FormatAmount(r.WinningAmount),
				AmountMinor:   r.WinningAmount.String(),
			})
		},
	}
}

func newReportEncodeCmd() *cobra.Command {
	var auctionID, winner, amount string

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a report from its fields",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := ids.ParseUint256(auctionID)
			if err != nil {
				return fmt.Errorf("--auction: %w", err)
			}
			addr, err := ids.ParseAddress(winner)
			if err != nil {
				return fmt.Errorf("--winner: %w", err)
			}
			minor, err := settlement.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			out, err := settlement.EncodeReportHex(settlement.Report{
				AuctionID:     id,
				Winner:        addr,
				WinningAmount: minor,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&auctionID, "auction", "", "Contract auction id")
	cmd.Flags().StringVar(&winner, "winner", "", "Winner address (0x-prefixed)")
	cmd.Flags().StringVar(&amount, "amount", "", "Winning amount in currency units, e.g. 1500.25")
	_ = cmd.MarkFlagRequired("auction")
	_ = cmd.MarkFlagRequired("winner")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
