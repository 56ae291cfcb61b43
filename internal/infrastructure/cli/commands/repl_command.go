package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/doeshing/dexplorer/internal/app"
	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/infrastructure/cli/helpers"
)

const continuationPrompt = "    ...> "

// REPLOptions controls terminal behaviour of the repl command.
type REPLOptions struct {
	// Interactive enables readline editing, prompts and the spinner.
	Interactive bool
}

// NewREPLCommand creates the interactive explorer
func NewREPLCommand(container *app.Container, opts REPLOptions) *cobra.Command {
	var (
		kind   string
		window rangeFlags
	)

	cmd := &cobra.Command{
		Use:     "repl",
		Aliases: []string{"shell"},
		Short:   "Explore data interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.QueryService == nil {
				return errors.New(ErrQueryServiceUnavailable)
			}
			queryKind, err := domain.ParseQueryKind(kind)
			if err != nil {
				return err
			}
			if err := container.Session.SetKind(queryKind); err != nil {
				return err
			}
			if err := window.apply(container.Session, time.Now()); err != nil {
				return err
			}

			r := newREPL(container, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.Interactive)
			if opts.Interactive {
				return r.runInteractive(cmd.Context())
			}
			return r.runScripted(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(domain.KindSQL), "Initial query kind: sql, promql, script")
	window.register(cmd.Flags())
	return cmd
}

type repl struct {
	container *app.Container
	renderer  *helpers.Renderer
	spinner   *helpers.Spinner
	out       io.Writer
	errOut    io.Writer
	buffer    strings.Builder
	// confirm is nil in scripted mode, so guarded statements are refused.
	confirm confirmFunc
}

func newREPL(container *app.Container, out, errOut io.Writer, interactive bool) *repl {
	return &repl{
		container: container,
		renderer:  helpers.NewRenderer(out, container.Config.GetOutputFormat(), container.Config.Display.Color && interactive),
		spinner:   helpers.NewSpinner(errOut, interactive),
		out:       out,
		errOut:    errOut,
	}
}

func (r *repl) runInteractive(ctx context.Context) error {
	historyFile := ""
	if r.container.ConfigLoader != nil {
		historyFile = filepath.Join(filepath.Dir(r.container.ConfigLoader.Path()), "repl_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    newDotCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()
	r.confirm = func(question string) (bool, error) {
		rl.SetPrompt(question + " [y/N]: ")
		answer, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	}

	fmt.Fprintf(r.out, "dexplorer (%s, db %s)\n", r.container.Config.GetBackendURL(), r.container.Config.GetDatabase())
	fmt.Fprintln(r.out, "Type .help for commands, .quit to exit")
	fmt.Fprintln(r.out)

	for {
		rl.SetPrompt(r.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			r.buffer.Reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if quit := r.handleLine(ctx, line); quit {
			return nil
		}
	}
}

func (r *repl) runScripted(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if quit := r.handleLine(ctx, scanner.Text()); quit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(r.buffer.String()) != "" {
		r.submit(ctx, r.buffer.String())
		r.buffer.Reset()
	}
	return nil
}

func (r *repl) prompt() string {
	if r.buffer.Len() > 0 {
		return continuationPrompt
	}
	return fmt.Sprintf("%s> ", r.container.Session.Kind())
}

// handleLine processes one input line and reports whether the REPL should exit.
func (r *repl) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if r.buffer.Len() == 0 && strings.HasPrefix(line, ".") {
		return r.handleDotCommand(ctx, line)
	}

	// SQL accumulates until a terminating semicolon; other kinds run per line.
	if r.container.Session.Kind() == domain.KindSQL {
		if r.buffer.Len() > 0 {
			r.buffer.WriteString("\n")
		}
		r.buffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			return false
		}
		code := r.buffer.String()
		r.buffer.Reset()
		r.submit(ctx, code)
		return false
	}

	r.submit(ctx, line)
	return false
}

func (r *repl) submit(ctx context.Context, code string) {
	sess := r.container.Session
	kind := sess.Kind()
	sess.SetCode(kind, code)
	r.execute(ctx, kind, code)
}

func (r *repl) execute(ctx context.Context, kind domain.QueryKind, code string) {
	if err := guardStatement(r.container, kind, code, r.confirm); err != nil {
		r.errorf("%v", err)
		return
	}
	r.spinner.Start("running " + string(kind))
	outcome, err := r.container.QueryService.Execute(domain.ExecuteRequest{
		Context: ctx,
		Code:    code,
		Kind:    kind,
	})
	r.spinner.Stop()
	if err != nil {
		r.errorf("%v", err)
		return
	}
	if err := r.renderer.Outcome(outcome); err != nil {
		r.errorf("%v", err)
	}
	if outcome.Kind == domain.OutcomeTransportFailure && outcome.Cause != nil {
		r.container.Logger.Debug("transport failure", map[string]interface{}{"cause": outcome.Cause.Error()})
	}
	fmt.Fprintln(r.out)
}

func (r *repl) handleDotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	args := parts[1:]
	sess := r.container.Session
	store := r.container.Results

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(r.out)

	case ".kind":
		if len(args) == 0 {
			r.printKinds()
			return false
		}
		kind, err := domain.ParseQueryKind(args[0])
		if err != nil {
			r.errorf("%v", err)
			return false
		}
		_ = sess.SetKind(kind)

	case ".range":
		r.handleRange(args)

	case ".format":
		if len(args) == 0 {
			fmt.Fprintln(r.out, r.renderer.Format())
			return false
		}
		r.renderer.SetFormat(args[0])

	case ".code":
		fmt.Fprintln(r.out, sess.CurrentCode())

	case ".cursor":
		r.handleCursor(args)

	case ".name":
		if len(args) != 1 {
			r.errorf("Usage: .name <identifier>")
			return false
		}
		sess.InsertName(args[0])
		fmt.Fprintln(r.out, sess.CurrentCode())

	case ".insert":
		if len(args) == 0 {
			r.errorf("Usage: .insert <text>")
			return false
		}
		sess.InsertCode(strings.Join(args, " "))

	case ".run":
		code := strings.TrimSpace(sess.CurrentCode())
		if code == "" {
			r.errorf("no code for %s", sess.Kind())
			return false
		}
		r.execute(ctx, sess.Kind(), code)

	case ".results":
		r.renderer.ResultList(store.Results())

	case ".show":
		key, ok := r.keyArg(args)
		if !ok {
			return false
		}
		rec, found := store.Get(key)
		if !found {
			r.errorf("no result #%d", key)
			return false
		}
		if err := r.renderer.Record(rec); err != nil {
			r.errorf("%v", err)
		}

	case ".remove":
		key, ok := r.keyArg(args)
		if !ok {
			return false
		}
		if !store.Remove(key) {
			r.errorf("no result #%d", key)
		}

	case ".clear":
		if len(args) == 0 {
			fmt.Fprintf(r.out, "Removed %d results\n", store.Clear(domain.QueryKinds...))
			return false
		}
		kinds := make([]domain.QueryKind, 0, len(args))
		for _, a := range args {
			kind, err := domain.ParseQueryKind(a)
			if err != nil {
				r.errorf("%v", err)
				return false
			}
			kinds = append(kinds, kind)
		}
		fmt.Fprintf(r.out, "Removed %d results\n", store.Clear(kinds...))

	case ".save":
		r.handleSave(ctx, args)

	default:
		r.errorf("Unknown command: %s (type .help for commands)", command)
	}
	return false
}

func (r *repl) handleRange(args []string) {
	sess := r.container.Session
	form := sess.PromForm()
	if len(args) == 0 {
		if form.IsRelative {
			fmt.Fprintf(r.out, "last %d minutes, step %q\n", form.Time, form.Step)
		} else {
			info := domain.PromRange{Start: form.Start, End: form.End}.Info("")
			fmt.Fprintf(r.out, "%s .. %s, step %q\n", info.Start, info.End, form.Step)
		}
		return
	}

	switch args[0] {
	case "last":
		if len(args) != 2 {
			r.errorf("Usage: .range last <minutes>")
			return
		}
		minutes, err := strconv.Atoi(args[1])
		if err != nil || minutes < 0 {
			r.errorf("invalid minutes %q", args[1])
			return
		}
		form.IsRelative = true
		form.Time = minutes
	case "abs":
		if len(args) != 3 {
			r.errorf("Usage: .range abs <start> <end>")
			return
		}
		start, err := parseTime(args[1])
		if err != nil {
			r.errorf("%v", err)
			return
		}
		end, err := parseTime(args[2])
		if err != nil {
			r.errorf("%v", err)
			return
		}
		if end < start {
			r.errorf("range end %d is before start %d", end, start)
			return
		}
		form.IsRelative = false
		form.Start, form.End = start, end
	case "step":
		if len(args) != 2 {
			r.errorf("Usage: .range step <step>")
			return
		}
		form.Step = args[1]
	default:
		r.errorf("Usage: .range [last <minutes> | abs <start> <end> | step <step>]")
		return
	}
	sess.SetPromForm(form)
}

func (r *repl) printKinds() {
	current := r.container.Session.Kind()
	fmt.Fprintf(r.out, "Current kind: %s\n", current)
	for _, opt := range r.container.Session.QueryOptions() {
		marker := "  "
		if opt.Value == current {
			marker = "* "
		}
		fmt.Fprintf(r.out, "%s%-8s %s\n", marker, opt.Value, opt.Label)
	}
}

// handleCursor shows or sets the selection that .name replaces.
func (r *repl) handleCursor(args []string) {
	sess := r.container.Session
	switch len(args) {
	case 0:
		start, end := sess.Cursor()
		fmt.Fprintf(r.out, "cursor %d..%d\n", start, end)
	case 2:
		start, err := strconv.Atoi(args[0])
		if err != nil || start < 0 {
			r.errorf("invalid cursor position %q", args[0])
			return
		}
		end, err := strconv.Atoi(args[1])
		if err != nil || end < 0 {
			r.errorf("invalid cursor position %q", args[1])
			return
		}
		sess.SetCursor(start, end)
	default:
		r.errorf("Usage: .cursor [<start> <end>]")
	}
}

func (r *repl) handleSave(ctx context.Context, args []string) {
	if len(args) == 0 {
		r.errorf("Usage: .save <name> [file]")
		return
	}
	name := args[0]
	code := r.container.Session.Code(domain.KindScript)
	if len(args) > 1 {
		raw, err := os.ReadFile(args[1])
		if err != nil {
			r.errorf("%v", err)
			return
		}
		code = string(raw)
	}
	if strings.TrimSpace(code) == "" {
		r.errorf("no script code to save")
		return
	}
	saved, err := r.container.QueryService.SaveScript(ctx, name, code, domain.KindScript)
	if err != nil {
		var saveErr *domain.SaveError
		if errors.As(err, &saveErr) {
			r.errorf("save failed: %s", saveErr.Detail)
			return
		}
		r.errorf("%v", err)
		return
	}
	r.container.Session.SetCode(domain.KindScript, code)
	fmt.Fprintf(r.out, "Saved script %s\n", saved.CodeInfo)
}

func (r *repl) keyArg(args []string) (int, bool) {
	if len(args) != 1 {
		r.errorf("a result key is required")
		return 0, false
	}
	key, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		r.errorf("invalid key %q", args[0])
		return 0, false
	}
	return key, true
}

func (r *repl) errorf(format string, a ...interface{}) {
	fmt.Fprintf(r.errOut, "Error: "+format+"\n", a...)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                      Show this help message
  .kind [sql|promql|script]  Show or switch the query kind
  .range                     Show the PromQL window
  .range last <minutes>      Use a relative window
  .range abs <start> <end>   Use an absolute window
  .range step <step>         Set the PromQL step
  .format [table|json|csv|md]
  .code                      Print the code held for the current kind
  .insert <text>             Append a line to the current code
  .cursor [<start> <end>]    Show or set the selection in the current code
  .name <identifier>         Replace the selection with a table or metric name
  .run                       Execute the current code
  .results                   List stored results
  .show <key>                Print a stored result
  .remove <key>              Drop a stored result
  .clear [kind...]           Drop stored results (all, or of the given kinds)
  .save <name> [file]        Store script code on the server
  .quit / .exit              Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - PromQL queries and script names run on enter
`
	fmt.Fprintln(w, help)
}

func newDotCompleter() *readline.PrefixCompleter {
	kinds := []readline.PrefixCompleterInterface{
		readline.PcItem(string(domain.KindSQL)),
		readline.PcItem("promql"),
		readline.PcItem(string(domain.KindScript)),
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".kind", kinds...),
		readline.PcItem(".range", readline.PcItem("last"), readline.PcItem("abs"), readline.PcItem("step")),
		readline.PcItem(".format",
			readline.PcItem(domain.FormatTable),
			readline.PcItem(domain.FormatJSON),
			readline.PcItem(domain.FormatCSV),
			readline.PcItem(domain.FormatMarkdown),
		),
		readline.PcItem(".code"),
		readline.PcItem(".cursor"),
		readline.PcItem(".name"),
		readline.PcItem(".insert"),
		readline.PcItem(".run"),
		readline.PcItem(".results"),
		readline.PcItem(".show"),
		readline.PcItem(".remove"),
		readline.PcItem(".clear", kinds...),
		readline.PcItem(".save"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
