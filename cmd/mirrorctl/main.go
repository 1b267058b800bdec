package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/config"
	"github.com/Adda-Baaj/nostr-mirror/internal/control"
	"github.com/Adda-Baaj/nostr-mirror/internal/settings"
	"github.com/spf13/pflag"
)

const usage = `usage: mirrorctl [--url URL] [--timeout D] <command> [args]

commands:
  status              show the bot status
  start               start the periodic mirror
  stop                stop the periodic mirror
  run                 run one cycle now and print the resulting status
  logs [--since T]    print buffered activity (T is RFC3339 or a duration like 10m)
  config              print the stored configuration (key redacted)
  config <file>       replace the configuration from a YAML or JSON file
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mirrorctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("mirrorctl", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	baseURL := fs.String("url", "", "control server URL (defaults to CONTROL_URL)")
	timeout := fs.Duration("timeout", 5*time.Minute, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("missing command")
	}

	if *baseURL == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		*baseURL = cfg.ControlURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return dispatch(ctx, control.NewRemote(*baseURL, *timeout), fs.Args(), out)
}

func dispatch(ctx context.Context, ctrl control.Controller, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "status":
		return status(ctx, ctrl, out)
	case "start":
		if err := ctrl.Start(ctx); err != nil {
			return err
		}
		return status(ctx, ctrl, out)
	case "stop":
		if err := ctrl.Stop(ctx); err != nil {
			return err
		}
		return status(ctx, ctrl, out)
	case "run":
		st, err := ctrl.RunNow(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, st)
	case "logs":
		return logs(ctx, ctrl, rest, out)
	case "config":
		if len(rest) == 0 {
			cfg, err := ctrl.Configuration(ctx)
			if err != nil {
				return err
			}
			return printJSON(out, control.Redact(cfg))
		}
		cfg, err := settings.LoadFile(rest[0])
		if err != nil {
			return err
		}
		if err := ctrl.Configure(ctx, cfg); err != nil {
			return err
		}
		return printJSON(out, control.Redact(cfg))
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func status(ctx context.Context, ctrl control.Controller, out io.Writer) error {
	st, err := ctrl.Status(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, st)
}

func logs(ctx context.Context, ctrl control.Controller, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("logs", pflag.ContinueOnError)
	rawSince := fs.String("since", "", "only entries after this time (RFC3339) or this long ago (duration)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	since, err := parseSince(*rawSince, time.Now())
	if err != nil {
		return err
	}

	entries, err := ctrl.Logs(ctx, since)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s [%s] %s\n", e.Time.Local().Format(time.DateTime), e.Level, e.Message)
	}
	return nil
}

func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want RFC3339 or a duration", raw)
	}
	return t, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
