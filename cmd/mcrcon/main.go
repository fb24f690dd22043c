// Command mcrcon is a console for Minecraft servers over RCON. It connects to the configured
// server, logs in, and either runs a single command given on the command line or drops into an
// interactive prompt.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	rcon "github.com/minescope/mcrcon"
)

const maxConnectBackoff = 10 * time.Second

var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	promptColor  = color.New(color.FgCyan, color.Bold)
)

func main() {
	if err := run(); err != nil {
		errorColor.Fprintf(os.Stderr, "mcrcon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		addr        string
		password    string
		timeout     time.Duration
		logLevel    string
		enableColor bool
	)

	flag.StringVar(&configPath, "config", "", "path to a TOML config file")
	flag.StringVar(&addr, "addr", "", "server address (host:port, RCON listens on port 25575 by default)")
	flag.StringVar(&password, "password", "", "RCON password (prompted for when empty)")
	flag.DurationVar(&timeout, "timeout", 0, "limit on one command round trip")
	flag.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flag.BoolVar(&enableColor, "color", isatty.IsTerminal(os.Stdout.Fd()), "enable colored output")
	flag.Parse()

	cfg := defaultCLIConfig()
	if configPath != "" {
		var err error
		cfg, err = loadCLIConfig(configPath)
		if err != nil {
			return err
		}
	}

	// Flags override the config file.
	if addr != "" {
		cfg.Address = addr
	}
	if password != "" {
		cfg.Password = password
	}
	if timeout != 0 {
		cfg.Timeout = timeout
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := validateCLIConfig(cfg); err != nil {
		return err
	}

	color.NoColor = !enableColor
	logger := initLogger(cfg.LogLevel)

	if cfg.Password == "" {
		pw, err := promptPassword()
		if err != nil {
			return err
		}
		cfg.Password = pw
	}

	client, err := connect(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.LogIn(ctx, cfg.Password); err != nil {
		return err
	}
	logger.Debug().Str("addr", cfg.Address).Msg("logged in")

	if args := flag.Args(); len(args) > 0 {
		resp, err := client.SendCommand(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if resp != "" {
			fmt.Println(resp)
		}
		return nil
	}

	successColor.Printf("connected to %s\n", cfg.Address)
	return runInteractive(ctx, client)
}

// initLogger builds the console logger for the command itself. The rcon package logs through
// log/slog; when debug logging is requested, a matching slog handler is handed to the client so
// packet traffic shows up too.
func initLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Str("app", "mcrcon").Logger().Level(lvl)
}

func packetLogger(level string) *slog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl > zerolog.DebugLevel {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func promptPassword() (string, error) {
	promptColor.Fprint(os.Stderr, "password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// connect dials the server, retrying with growing delays. Reconnection policy lives here on
// purpose: the rcon package treats any connection as caller-owned and never redials.
func connect(cfg cliConfig, logger zerolog.Logger) (*rcon.Client, error) {
	clientConfig := rcon.ClientConfig{
		Timeout: cfg.Timeout,
		Logger:  packetLogger(cfg.LogLevel),
	}

	var lastErr error
	delay := cfg.ConnectBackoff
	for attempt := 0; attempt < cfg.ConnectAttempts; attempt++ {
		if attempt > 0 {
			logger.Warn().Err(lastErr).Dur("delay", delay).Msg("connect failed, retrying")
			time.Sleep(delay)
			delay *= 2
			if delay > maxConnectBackoff {
				delay = maxConnectBackoff
			}
		}

		client, err := rcon.Dial(cfg.Address, clientConfig)
		if err == nil {
			return client, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("connect to %s: %w", cfg.Address, lastErr)
}

func runInteractive(ctx context.Context, client *rcon.Client) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptColor.Print("rcon> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		resp, err := client.SendCommand(ctx, line)
		if err != nil {
			if fatalSessionError(err) {
				return err
			}
			errorColor.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if resp != "" {
			fmt.Println(resp)
		}
	}
}

// fatalSessionError reports whether the session can still be used after err. Framing and
// transport failures desynchronize the stream, so the console gives up rather than sending more
// commands into it.
func fatalSessionError(err error) bool {
	return errors.Is(err, rcon.ErrConnectionClosed) ||
		errors.Is(err, rcon.ErrTimeout) ||
		errors.Is(err, rcon.ErrMalformedPacket) ||
		errors.Is(err, rcon.ErrInvalidEncoding) ||
		errors.Is(err, rcon.ErrProtocolViolation)
}
