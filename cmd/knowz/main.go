package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/knowzhq/knowz/internal/config"
	"github.com/knowzhq/knowz/internal/devapi"
	"github.com/knowzhq/knowz/internal/logging"
	"github.com/knowzhq/knowz/internal/session"
	"github.com/knowzhq/knowz/internal/store"
	"github.com/knowzhq/knowz/internal/swipe"
	"github.com/knowzhq/knowz/internal/tui"
	"github.com/knowzhq/knowz/pkg/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// readPassword prompts on stderr and reads a line from the terminal without echo.
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func run(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "version", "-v":
			fmt.Println("knowz " + version)
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if len(args) > 0 && args[0] == "devserver" {
		return runDevServer(ctx, cfg, args[1:], os.Stdout)
	}

	env, err := openEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	in := bufio.NewReader(os.Stdin)
	if len(args) > 0 {
		switch args[0] {
		case "login":
			return runLogin(ctx, env, args[1:], in, os.Stdout)
		case "register":
			return runRegister(ctx, env, in, os.Stdout)
		case "logout":
			return runLogout(ctx, env, os.Stdout)
		case "whoami":
			return runWhoami(ctx, env, os.Stdout)
		default:
			printHelp()
			return fmt.Errorf("unknown command %q", args[0])
		}
	}

	app := tui.NewApp(tui.Deps{
		Client:       env.client,
		Session:      env.session,
		Outbox:       env.outbox,
		Log:          env.log,
		PollInterval: cfg.PollInterval,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

// env is the wired client stack shared by the TUI and the account commands.
type env struct {
	log     *slog.Logger
	store   *store.Store
	client  *client.Client
	session *session.Store
	outbox  *swipe.Outbox
	closers []io.Closer
}

func openEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	log, logFile, err := logging.OpenFile(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.DBPath())
	if err != nil {
		logFile.Close() //nolint:errcheck
		return nil, fmt.Errorf("open local database: %w", err)
	}

	// Login and register never carry a bearer token; every other call reads
	// it from the session store at request time.
	sess := session.New(client.New(cfg.APIURL, nil), session.NewSQLiteStorage(st), log)
	c := client.New(cfg.APIURL, sess)

	return &env{
		log:     log,
		store:   st,
		client:  c,
		session: sess,
		outbox:  swipe.NewOutbox(st.Outbox, c, log),
		closers: []io.Closer{st, logFile},
	}, nil
}

// Close releases the database and the log file.
func (e *env) Close() {
	for _, c := range e.closers {
		c.Close() //nolint:errcheck
	}
}

// prompt writes label and reads one trimmed line.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSpace(strings.TrimSuffix(label, ":")), err)
	}
	return strings.TrimSpace(line), nil
}

func runLogin(ctx context.Context, e *env, args []string, in *bufio.Reader, out io.Writer) error {
	if err := e.session.Restore(ctx); err != nil {
		e.log.Warn("restore session failed", "error", err)
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		var err error
		if username, err = prompt(in, out, "Username: "); err != nil {
			return err
		}
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	if err := e.session.Login(ctx, username, password); err != nil {
		return errors.New(e.session.Err())
	}
	fmt.Fprintf(out, "Logged in as @%s\n", username)
	flushOutbox(ctx, e, out)
	return nil
}

func runRegister(ctx context.Context, e *env, in *bufio.Reader, out io.Writer) error {
	username, err := prompt(in, out, "Username: ")
	if err != nil {
		return err
	}
	email, err := prompt(in, out, "Email: ")
	if err != nil {
		return err
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	skills, err := prompt(in, out, "Skills (teach, second skill, want to learn): ")
	if err != nil {
		return err
	}

	if err := e.session.Register(ctx, session.NewRegisterRequest(username, email, password, skills)); err != nil {
		return errors.New(e.session.Err())
	}
	fmt.Fprintf(out, "Welcome to KnowZ, @%s!\n", username)
	printWelcome(out)
	return nil
}

func runLogout(ctx context.Context, e *env, out io.Writer) error {
	if err := e.session.Restore(ctx); err != nil {
		e.log.Warn("restore session failed", "error", err)
	}
	if !e.session.IsAuthenticated() {
		fmt.Fprintln(out, "Already logged out.")
		return nil
	}
	if err := e.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Logged out.")
	return nil
}

func runWhoami(ctx context.Context, e *env, out io.Writer) error {
	if err := e.session.Restore(ctx); err != nil {
		return err
	}
	sess, ok := e.session.Current()
	if !ok {
		fmt.Fprintln(out, "Not logged in. Run `knowz login`.")
		return nil
	}
	fmt.Fprintf(out, "@%s (user %s)\n", sess.Username, sess.UserID)
	if n, err := e.store.Outbox.Count(ctx, sess.UserID); err == nil && n > 0 {
		fmt.Fprintf(out, "%d swipe decision(s) waiting to be delivered\n", n)
	}
	if h, err := e.client.Health(ctx); err != nil {
		fmt.Fprintf(out, "API %s unreachable\n", e.client.BaseURL())
	} else {
		fmt.Fprintf(out, "API %s: %s\n", e.client.BaseURL(), h.Status)
	}
	return nil
}

// flushOutbox delivers decisions queued while offline.
func flushOutbox(ctx context.Context, e *env, out io.Writer) {
	sess, ok := e.session.Current()
	if !ok {
		return
	}
	res, err := e.outbox.Flush(ctx, sess.UserID)
	if err != nil {
		e.log.Warn("outbox flush failed", "error", err)
	}
	if res.Delivered > 0 {
		fmt.Fprintf(out, "Delivered %d saved swipe decision(s)\n", res.Delivered)
	}
	for _, m := range res.Matches {
		fmt.Fprintf(out, "It's a match with %s! You can now message each other.\n", m.Username)
	}
}

func runDevServer(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)
	fs.SetOutput(out)
	addr := fs.String("addr", cfg.Dev.Addr, "listen address")
	seed := fs.Bool("seed", false, "load demo users, skills and a sample match")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logging.New(out, cfg.LogLevel)
	srv, err := devapi.NewServer(devapi.Options{
		Secret:   []byte(cfg.Dev.Secret),
		TokenTTL: cfg.Dev.TokenTTL,
	}, log)
	if err != nil {
		return err
	}
	if *seed {
		if err := srv.Seed(); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info("seeded demo data", "password", devapi.DemoPassword)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, *addr)
}
