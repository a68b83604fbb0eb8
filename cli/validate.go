// Package cli implements the soma command-line interface: offline
// validation and inspection of blueprint definition files.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/axon-labs/soma/blueprint"
)

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a blueprint file without building it",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
		// SilenceUsage/SilenceErrors: this command's own output (text or
		// JSON) is the error report; cobra's default usage/error dump
		// would corrupt it when captured alongside stdout.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Bool("strict", false, "Treat warnings as errors")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	format, _ := cmd.Flags().GetString("format")
	strict, _ := cmd.Flags().GetBool("strict")
	out := cmd.OutOrStdout()

	diags, err := validateFile(filePath)
	if err != nil {
		return err
	}

	printDiagnostics(out, diags, format)

	hasErrs := blueprint.HasErrors(diags)
	hasWarns := len(blueprint.Warnings(diags)) > 0

	if hasErrs || (strict && hasWarns) {
		return exitError(exitValidation, "validation failed")
	}

	return nil
}

// validateFile loads a definition and returns its diagnostics. Parse
// failures are reported as a BP-000 diagnostic rather than an error so
// they render the same way as validation findings.
func validateFile(filePath string) ([]blueprint.Diagnostic, error) {
	data, err := os.ReadFile(filePath) // #nosec G304 -- path from caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, exitError(exitFileNotFound, "file not found: %s", filePath)
		}
		return nil, fmt.Errorf("reading file: %w", err)
	}

	def, err := blueprint.LoadBytes(data, filePath)
	if err != nil {
		var diagErr *blueprint.DiagnosticError
		if errors.As(err, &diagErr) {
			return diagErr.Diagnostics, nil
		}
		return []blueprint.Diagnostic{{
			Code:     "BP-000",
			Severity: blueprint.SeverityError,
			Message:  fmt.Sprintf("failed to parse file: %v", err),
		}}, nil
	}

	return def.Validate(), nil
}

func printDiagnostics(out io.Writer, diags []blueprint.Diagnostic, format string) {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if diags == nil {
			diags = []blueprint.Diagnostic{}
		}
		_ = enc.Encode(diags)
		return
	}

	if len(diags) == 0 {
		fmt.Fprintln(out, "valid: no findings")
		return
	}
	for _, d := range diags {
		if d.Path != "" {
			fmt.Fprintf(out, "%s %s: %s (%s)\n", d.Severity, d.Code, d.Message, d.Path)
		} else {
			fmt.Fprintf(out, "%s %s: %s\n", d.Severity, d.Code, d.Message)
		}
	}
}
