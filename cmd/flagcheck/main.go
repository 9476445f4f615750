// Command flagcheck checks feature flags from the terminal, either through
// the configured provider (frontend) or through the backend service.
//
//	flagcheck [flags] frontend [name]
//	flagcheck [flags] backend [name]
//	flagcheck [flags] watch        # reads f/b lines from stdin
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/adeilh/go-flagcheck/cache"
	"github.com/adeilh/go-flagcheck/flags"
	"github.com/adeilh/go-flagcheck/httpx"
	"github.com/adeilh/go-flagcheck/internal/config"
	"github.com/adeilh/go-flagcheck/internal/providers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "flagcheck:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cfg, fs, err := config.Load("flagcheck", args, os.LookupEnv)
	if err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("missing command: frontend, backend or watch")
	}
	logger := cfg.NewLogger("flagcheck")

	var opts []flags.CheckerOption
	opts = append(opts, flags.WithLogger(logger))
	backendClient := httpx.NewClient(httpx.WithBaseURL(cfg.BackendURL), httpx.WithUserAgent("flagcheck-cli"))
	opts = append(opts, flags.WithBackend(flags.NewHTTPBackend(backendClient, "")))

	// The provider is only opened when a frontend check can happen.
	if rest[0] != "backend" {
		provider, closeProvider, err := providers.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeLogged(logger, "provider", closeProvider)
		opts = append(opts, flags.WithEvaluator(provider))
	}

	s := session{
		checker: flags.NewChecker(cache.NewExpiring[bool](cache.WithTTL(cfg.TTL)), opts...),
		name:    cfg.DefaultFlag,
		out:     out,
	}
	if len(rest) > 1 {
		s.name = rest[1]
	}

	switch rest[0] {
	case "frontend":
		s.frontend(ctx)
	case "backend":
		s.backend(ctx)
	case "watch":
		return s.watch(ctx, in)
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
	return nil
}

func closeLogged(log flags.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Errorf("closing %s: %v", what, err)
	}
}

// session prints one status block per check, the way the demo page updates
// its status line.
type session struct {
	checker *flags.Checker
	name    string
	out     io.Writer
}

func (s session) frontend(ctx context.Context) {
	res, err := s.checker.CheckFrontend(ctx, s.name)
	if err != nil {
		// Errors are already logged by the checker; show the legacy path.
		res = flags.Result{Name: s.name, Source: flags.SourceFrontend}
	}
	s.print(res)
}

func (s session) backend(ctx context.Context) {
	res, err := s.checker.CheckBackend(ctx, s.name)
	if err != nil {
		fmt.Fprintln(s.out, flags.BackendErrorText)
		return
	}
	s.print(res)
}

func (s session) print(res flags.Result) {
	suffix := ""
	if res.Cached {
		suffix = " (cached)"
	}
	fmt.Fprintf(s.out, "%s%s\n", flags.StatusText(res), suffix)
}

func (s session) watch(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "f", "frontend":
			s.frontend(ctx)
		case "b", "backend":
			s.backend(ctx)
		case "q", "quit":
			return nil
		case "":
		default:
			fmt.Fprintln(s.out, "type f (frontend), b (backend) or q (quit)")
		}
	}
	return scanner.Err()
}
