package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doeshing/dexplorer/internal/app"
	"github.com/doeshing/dexplorer/internal/domain"
)

// NewScriptCommand creates the script command with its subcommands
func NewScriptCommand(container *app.Container) *cobra.Command {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "Save and run server-side scripts",
	}
	scriptCmd.AddCommand(
		newScriptSaveCommand(container),
		newScriptRunCommand(container),
	)
	return scriptCmd
}

func newScriptSaveCommand(container *app.Container) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "save <name> [code]",
		Short: "Store script code on the server under name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.QueryService == nil {
				return errors.New(ErrQueryServiceUnavailable)
			}
			name := args[0]
			code, err := readCode(args[1:], file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			saved, err := container.QueryService.SaveScript(cmd.Context(), name, code, domain.KindScript)
			if err != nil {
				var saveErr *domain.SaveError
				if errors.As(err, &saveErr) {
					container.Logger.Debug("script save failed", map[string]interface{}{"name": name, "cause": fmt.Sprint(saveErr.Unwrap())})
					return fmt.Errorf("save %s: %s", name, saveErr.Detail)
				}
				return err
			}
			container.Session.SetCode(domain.KindScript, code)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved script %s (code %d, %d ms)\n", saved.CodeInfo, saved.Code, saved.ExecutionTimeMS)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read script from file (- for stdin)")
	return cmd
}

func newScriptRunCommand(container *app.Container) *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a stored script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.QueryService == nil {
				return errors.New(ErrQueryServiceUnavailable)
			}
			outcome, err := container.QueryService.Execute(domain.ExecuteRequest{
				Context:  cmd.Context(),
				Code:     args[0],
				Kind:     domain.KindScript,
				SkipSave: noSave,
			})
			if err != nil {
				return err
			}
			if err := newRenderer(cmd, container).Outcome(outcome); err != nil {
				return err
			}
			return outcomeError(outcome)
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not keep the result in the result store")
	return cmd
}
