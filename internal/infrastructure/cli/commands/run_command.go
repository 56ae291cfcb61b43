package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/dexplorer/internal/app"
	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/ports"
)

// NewRunCommand creates the run command
func NewRunCommand(container *app.Container, prompter ports.ConfirmationPrompter) *cobra.Command {
	var (
		kind      string
		file      string
		noSave    bool
		assumeYes bool
		window    rangeFlags
	)

	cmd := &cobra.Command{
		Use:   "run [code]",
		Short: "Execute SQL, PromQL or a stored script once",
		Example: `  dexplorer run "SELECT * FROM monitor LIMIT 10"
  dexplorer run -k promql --last 15 'rate(http_requests_total[1m])'
  dexplorer run -k script my_script
  dexplorer run -f query.sql -o csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.QueryService == nil {
				return errors.New(ErrQueryServiceUnavailable)
			}
			queryKind, err := domain.ParseQueryKind(kind)
			if err != nil {
				return err
			}
			code, err := readCode(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if queryKind == domain.KindPromQL {
				if err := window.apply(container.Session, time.Now()); err != nil {
					return err
				}
			}
			if !assumeYes {
				var confirm confirmFunc
				if prompter != nil && prompter.Enabled() {
					confirm = prompter.Confirm
				}
				if err := guardStatement(container, queryKind, code, confirm); err != nil {
					return err
				}
			}
			container.Session.SetCode(queryKind, code)

			outcome, err := container.QueryService.Execute(domain.ExecuteRequest{
				Context:  cmd.Context(),
				Code:     code,
				Kind:     queryKind,
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

	cmd.Flags().StringVarP(&kind, "kind", "k", string(domain.KindSQL), "Query kind: sql, promql, script")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read code from file (- for stdin)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not keep the result in the result store")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Run destructive statements without confirmation")
	window.register(cmd.Flags())
	return cmd
}
