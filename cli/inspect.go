package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axon-labs/soma/blueprint"
)

// NewInspectCmd creates the "inspect" subcommand.
func NewInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the topology of a blueprint file",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
		// SilenceUsage/SilenceErrors: this command's own output is the
		// error report; cobra's default usage/error dump would corrupt
		// it when captured alongside stdout.
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	out := cmd.OutOrStdout()

	def, err := blueprint.Load(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exitError(exitFileNotFound, "file not found: %s", filePath)
		}
		var diagErr *blueprint.DiagnosticError
		if errors.As(err, &diagErr) {
			printDiagnostics(out, diagErr.Diagnostics, "text")
			return exitError(exitValidation, "definition is invalid")
		}
		return err
	}

	fmt.Fprintf(out, "organelle %q\n", def.Name)
	fmt.Fprintf(out, "somas (%d):\n", len(def.Somas))
	for _, s := range def.Somas {
		marker := "  "
		if s.ID == def.Main {
			marker = "* " // main soma: the organelle's external face
		}
		fmt.Fprintf(out, "  %s%s (%s)\n", marker, s.ID, s.Type)
	}

	fmt.Fprintf(out, "connections (%d):\n", len(def.Connections))
	for _, c := range def.Connections {
		fmt.Fprintf(out, "    %s -> %s [%s]\n", c.Input, c.Output, c.Role)
	}

	return nil
}
