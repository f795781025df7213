package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/docflip-go"
	"github.com/nicholasgasior/docflip-go/internal/storage"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "convert <source>",
		Short: "Convert a PDF to DOCX or a DOCX to PDF",
		Long: "Convert a single file. The direction follows the source extension: " +
			".pdf becomes .docx and .docx becomes .pdf. Backends are tried in order " +
			"until one produces the artifact.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			d, ok := docflip.DirectionForExtension(filepath.Ext(src))
			if !ok {
				return &docflip.InvalidRequestError{Reason: fmt.Sprintf("unsupported source extension %q", filepath.Ext(src))}
			}
			dst := output
			if dst == "" {
				dst = filepath.Join(filepath.Dir(src), storage.OutputName(filepath.Base(src), d))
			}

			outcome, err := ctx.newEngine().ConvertFile(cmd.Context(), src, dst)
			var failed *docflip.AllBackendsFailedError
			if errors.As(err, &failed) {
				fmt.Fprintln(cmd.ErrOrStderr(), renderAttempts(failed.Attempts))
				return fmt.Errorf("%s conversion of %s failed: all %d backend(s) failed", d, src, len(failed.Attempts))
			}
			if err != nil {
				return err
			}

			printOutcome(cmd.OutOrStdout(), outcome, dst)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: converted_<name> next to the source)")
	return cmd
}

func printOutcome(w io.Writer, outcome *docflip.Outcome, dst string) {
	fmt.Fprintf(w, "%s written by %s", dst, outcome.ProducedBy)
	if skipped := len(outcome.Attempts) - 1; skipped > 0 {
		fmt.Fprintf(w, " after %d failed backend(s)", skipped)
	}
	fmt.Fprintln(w)
}

func renderAttempts(attempts []docflip.Attempt) string {
	rows := make([][]string, 0, len(attempts))
	for i, a := range attempts {
		result := "ok"
		if !a.Succeeded() {
			result = a.Cause()
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			a.Backend,
			a.Duration.Round(time.Millisecond).String(),
			result,
		})
	}
	return renderTable(
		[]string{"#", "Backend", "Time", "Result"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	)
}
