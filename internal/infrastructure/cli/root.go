package cli

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/doeshing/dexplorer/internal/app"
	"github.com/doeshing/dexplorer/internal/infrastructure/cli/commands"
	"github.com/doeshing/dexplorer/internal/infrastructure/cli/helpers"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
	// Interactive enables the readline REPL, spinners and confirmation prompts.
	Interactive bool
}

// Root is the command tree plus the container its commands share.
type Root struct {
	*cobra.Command
	container *app.Container
}

// Execute runs the command tree with a background context.
func (r *Root) Execute() error {
	return r.ExecuteContext(context.Background())
}

// ExecuteContext runs the command tree and closes the container afterwards,
// including when the command failed.
func (r *Root) ExecuteContext(ctx context.Context) error {
	err := r.Command.ExecuteContext(ctx)
	if closeErr := r.container.Close(); err == nil {
		err = closeErr
	}
	return err
}

// NewRootCmd wires the cobra root command. The container is built after flag
// parsing so persistent flags can override the config file.
func NewRootCmd(opts Options) *Root {
	container := &app.Container{}
	var configPath string

	root := &cobra.Command{
		Use:   "dexplorer",
		Short: "dexplorer - GreptimeDB data explorer",
		Long:  "dexplorer runs SQL, PromQL and stored scripts against GreptimeDB and keeps the results for inspection.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[commands.AnnotationNoContainer] == "true" {
				return nil
			}
			verbose := opts.Verbose
			if v, err := cmd.Flags().GetBool("verbose"); err == nil && v {
				verbose = true
			}
			built, err := app.BuildContainer(cmd.Context(), app.Options{
				Verbose:    verbose,
				ConfigPath: configPath,
				Flags:      cmd.Flags(),
			})
			if err != nil {
				return err
			}
			*container = *built
			container.QueryService.Notifier = helpers.NewNotifier(cmd.ErrOrStderr(), container.Config.Display.Color)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.dexplorer/config.yaml)")
	flags.String("url", "", "GreptimeDB HTTP endpoint")
	flags.String("database", "", "Database to query")
	flags.Int("timeout", 0, "Request timeout in seconds")
	flags.StringP("format", "o", "", "Output format: table, json, csv, md")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	prompter := helpers.NewPrompter(os.Stdin, os.Stderr, opts.Interactive)
	root.AddCommand(
		commands.NewRunCommand(container, prompter),
		commands.NewREPLCommand(container, commands.REPLOptions{Interactive: opts.Interactive}),
		commands.NewScriptCommand(container),
		commands.NewHistoryCommand(container, prompter),
		commands.NewDoctorCommand(container),
		commands.NewGuardrailCommand(container),
		commands.NewConfigCommand(container),
		commands.NewVersionCommand(),
	)
	return &Root{Command: root, container: container}
}

// IsTerminal reports whether stdin is attached to a terminal.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}
