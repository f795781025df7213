package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/docflip-go"
	"github.com/nicholasgasior/docflip-go/internal/deps"
)

func newBackendsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the conversion backends and external tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := ctx.newEngine()

			var rows [][]string
			for _, d := range []docflip.Direction{docflip.Extraction, docflip.Synthesis} {
				for i, name := range engine.Backends(d) {
					rows = append(rows, []string{d.String(), strconv.Itoa(i + 1), name})
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Direction", "Order", "Backend"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))

			cfg := ctx.config
			var toolRows [][]string
			for _, s := range deps.CheckBinaries(deps.Tools(cfg.Tools.Soffice, cfg.Tools.Pdftotext)) {
				state := "available"
				if !s.Available {
					state = "missing"
				}
				toolRows = append(toolRows, []string{s.Name, s.Command, state, s.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Command", "Status", "Detail"},
				toolRows,
				nil,
			))
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docflip %s\n", version)
		},
	}
}
