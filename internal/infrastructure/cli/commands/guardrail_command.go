package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/dexplorer/internal/app"
	"github.com/doeshing/dexplorer/internal/domain"
)

// NewGuardrailCommand creates the guardrail command with its subcommands
func NewGuardrailCommand(container *app.Container) *cobra.Command {
	guardrailCmd := &cobra.Command{
		Use:   "guardrail",
		Short: "Inspect the destructive-statement guardrail",
	}

	guardrailCmd.AddCommand(
		newGuardrailStatusCommand(container),
		newGuardrailCheckCommand(container),
	)

	return guardrailCmd
}

// newGuardrailStatusCommand shows current guardrail status
func newGuardrailStatusCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show guardrail status",
		RunE: func(cmd *cobra.Command, args []string) error {
			showGuardrailStatus(cmd.OutOrStdout(), container.Config)
			return nil
		},
	}
}

// newGuardrailCheckCommand evaluates SQL without running it
func newGuardrailCheckCommand(container *app.Container) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "check [sql]",
		Short: "Show which guardrail rules a statement matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Guardrail == nil {
				return errors.New(ErrGuardrailDisabled)
			}
			code, err := readCode(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			assessment, err := container.Guardrail.Evaluate(code)
			if err != nil {
				return err
			}
			printAssessment(cmd.OutOrStdout(), assessment)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read SQL from file (- for stdin)")
	return cmd
}

// showGuardrailStatus displays whether the guardrail is on and where its rules come from
func showGuardrailStatus(out io.Writer, cfg domain.Config) {
	if !cfg.IsGuardrailEnabled() {
		fmt.Fprintln(out, "Guardrail is currently disabled.")
		return
	}
	fmt.Fprintln(out, "Guardrail is currently enabled.")
	if _, err := os.Stat(cfg.Guardrail.RulesPath); err == nil {
		fmt.Fprintf(out, "Rules file: %s\n", cfg.Guardrail.RulesPath)
	} else {
		fmt.Fprintf(out, "Rules file: %s (not found, using built-in rules)\n", cfg.Guardrail.RulesPath)
	}
}

func printAssessment(out io.Writer, assessment domain.RiskAssessment) {
	fmt.Fprintf(out, "Risk: %s\nAction: %s\n", assessment.Level, assessment.Action)
	if len(assessment.Reasons) > 0 {
		fmt.Fprintf(out, "Reasons: %s\n", strings.Join(assessment.Reasons, "; "))
	}
}
