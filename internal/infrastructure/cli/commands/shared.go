package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/doeshing/dexplorer/internal/app"
	"github.com/doeshing/dexplorer/internal/application/session"
	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/infrastructure/cli/helpers"
)

// DefaultPromStep is the resolution used when --step is not given.
const DefaultPromStep = "30s"

func newRenderer(cmd *cobra.Command, container *app.Container) *helpers.Renderer {
	return helpers.NewRenderer(cmd.OutOrStdout(), container.Config.GetOutputFormat(), container.Config.Display.Color)
}

// readCode resolves code from a file, from stdin ("-"), or from the joined args.
func readCode(args []string, file string, stdin io.Reader) (string, error) {
	var raw string
	switch {
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		raw = string(b)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		raw = string(b)
	default:
		raw = strings.Join(args, " ")
	}
	code := strings.TrimSpace(raw)
	if code == "" {
		return "", errors.New(ErrCodeRequired)
	}
	return code, nil
}

// rangeFlags binds the PromQL window options shared by run and repl.
type rangeFlags struct {
	minutes int
	start   string
	end     string
	step    string
}

func (r *rangeFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&r.minutes, "last", domain.DefaultRelativeMinutes, "PromQL window: last N minutes")
	fs.StringVar(&r.start, "start", "", "PromQL range start (unix seconds, RFC3339 or \"2006-01-02 15:04:05\")")
	fs.StringVar(&r.end, "end", "", "PromQL range end (defaults to now when --start is set)")
	fs.StringVar(&r.step, "step", DefaultPromStep, "PromQL query resolution step")
}

// apply stores the window on the session. An explicit --start selects an
// absolute range; otherwise the range is relative.
func (r rangeFlags) apply(sess *session.Session, now time.Time) error {
	form := domain.PromForm{Step: r.step, IsRelative: true, Time: r.minutes}
	if r.start != "" {
		start, err := parseTime(r.start)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		end := now.Unix()
		if r.end != "" {
			if end, err = parseTime(r.end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
		}
		if end < start {
			return fmt.Errorf("range end %d is before start %d", end, start)
		}
		form = domain.PromForm{Start: start, End: end, Step: r.step, IsRelative: false, Time: r.minutes}
	}
	if form.IsRelative && form.Time < 0 {
		return fmt.Errorf("--last must be >= 0, got %d", form.Time)
	}
	sess.SetPromForm(form)
	return nil
}

// parseTime accepts unix seconds, RFC3339, or the local log format.
func parseTime(value string) (int64, error) {
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return secs, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Unix(), nil
	}
	t, err := time.ParseInLocation(domain.PromTimeFormat, value, time.Local)
	if err != nil {
		return 0, fmt.Errorf("unrecognized time %q", value)
	}
	return t.Unix(), nil
}

// confirmFunc asks the user a yes/no question.
type confirmFunc func(question string) (bool, error)

// guardStatement checks SQL against the guardrail before it is sent. A nil
// confirm refuses statements that need confirmation.
func guardStatement(container *app.Container, kind domain.QueryKind, code string, confirm confirmFunc) error {
	if container.Guardrail == nil || kind != domain.KindSQL {
		return nil
	}
	assessment, err := container.Guardrail.Evaluate(code)
	if err != nil {
		return err
	}
	reasons := strings.Join(assessment.Reasons, "; ")
	switch assessment.Action {
	case domain.ActionBlock:
		return fmt.Errorf("%s: %s", ErrStatementBlocked, reasons)
	case domain.ActionConfirm:
		if confirm == nil {
			return fmt.Errorf("%s (%s): rerun interactively or with run --yes", ErrStatementNeedsConfirm, reasons)
		}
		ok, err := confirm(fmt.Sprintf("%s risk: %s. Run it?", assessment.Level, reasons))
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(ErrStatementCancelled)
		}
	}
	return nil
}

// outcomeError turns a failed outcome into a command error after it was rendered.
func outcomeError(outcome domain.Outcome) error {
	switch outcome.Kind {
	case domain.OutcomeRecoveredFailure:
		if outcome.Log != nil {
			return fmt.Errorf("execution failed with code %d", outcome.Log.Code)
		}
		return errors.New("execution failed")
	case domain.OutcomeTransportFailure:
		if outcome.Cause != nil {
			return fmt.Errorf("request failed: %w", outcome.Cause)
		}
		return errors.New("request failed")
	default:
		return nil
	}
}
