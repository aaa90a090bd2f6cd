package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rflorenc/wordpress-node/internal/api"
	"github.com/rflorenc/wordpress-node/internal/config"
	"github.com/rflorenc/wordpress-node/internal/metrics"
	"github.com/rflorenc/wordpress-node/internal/models"
	"github.com/rflorenc/wordpress-node/internal/wordpress"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:        "wpnode",
		Usage:       "WordPress REST API node for workflow hosts",
		Description: "Create, read, update and delete posts, custom post types, media and users on WordPress sites.",
		Version:     fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (YAML)",
				Sources: cli.EnvVars("WPNODE_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "resolve-rest-base",
				Usage: "Call the rest_base of known post types instead of the raw slug",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-request timeout against WordPress",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			execCommand(),
			optionsCommand(),
			schemaCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig overlays the config file beneath the flags that were set.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := &config.Config{
		LogLevel: cmd.String("log-level"),
		Timeout:  cmd.Duration("timeout"),
	}
	if cmd.IsSet("resolve-rest-base") {
		v := cmd.Bool("resolve-rest-base")
		cfg.ResolveRESTBase = &v
	}
	if cmd.IsSet("listen") {
		cfg.Listen = cmd.String("listen")
	}
	if cmd.IsSet("db") {
		cfg.DBPath = cmd.String("db")
	}
	if cmd.IsSet("options-ttl") {
		cfg.OptionsTTL = cmd.Duration("options-ttl")
	}
	if cmd.IsSet("continue-on-fail") {
		v := cmd.Bool("continue-on-fail")
		cfg.ContinueOnFail = &v
	}
	if err := cfg.Load(cmd.String("config")); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// configuredCredential looks up a credential from the config file by name. The
// name doubles as its ID for the option cache.
func configuredCredential(cfg *config.Config, name string) (*models.Credential, error) {
	if name == "" && len(cfg.Credentials) == 1 {
		name = cfg.Credentials[0].Name
	}
	cc, ok := cfg.FindCredential(name)
	if !ok {
		return nil, fmt.Errorf("credential %q not found in config", name)
	}
	cred := cc.Credential()
	cred.ID = cc.Name
	return cred, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Start the HTTP bridge",
		Description: "Register the configured credentials, check each of them and serve the node over HTTP.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "HTTP listen address",
				Sources: cli.EnvVars("WPNODE_LISTEN"),
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "BoltDB file for credentials (in-memory when empty)",
			},
			&cli.DurationFlag{
				Name:  "options-ttl",
				Usage: "How long discovered post types are cached",
			},
			&cli.BoolFlag{
				Name:  "continue-on-fail",
				Usage: "Default continue-on-fail for requests that do not set it",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(ctx, cfg, newLogger(cfg))
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	creds := models.NewCredentialStore()
	if cfg.DBPath != "" {
		var err error
		creds, err = models.OpenCredentialStore(cfg.DBPath)
		if err != nil {
			return err
		}
	}
	defer creds.Close()

	server := &api.Server{
		Credentials:     creds,
		Executions:      models.NewExecutionStore(),
		Options:         wordpress.NewOptionCache(cfg.OptionsTTL, nil),
		Metrics:         metrics.NewCollector("wpnode"),
		Logger:          logger,
		ResolveRESTBase: cfg.ResolvesRESTBase(),
		ContinueOnFail:  cfg.ContinuesOnFail(),
		Timeout:         cfg.Timeout,
	}

	// Load pre-configured credentials from config file
	for _, cc := range cfg.Credentials {
		cred := cc.Credential()
		if existing := creds.FindByName(cc.Name); existing != nil {
			cred.ID = existing.ID
			if _, err := creds.Update(cred); err != nil {
				return fmt.Errorf("updating credential %s: %w", cc.Name, err)
			}
		} else if err := creds.Create(cred); err != nil {
			return fmt.Errorf("storing credential %s: %w", cc.Name, err)
		}
		logger.Info("loaded credential", "name", cred.Name, "base_url", cred.BaseURL, "authentication", cred.Mode())

		// Verify connectivity and auth early
		res := server.CheckCredential(ctx, cred)
		switch {
		case res.PingStatus != "ok":
			logger.Warn("ping failed", "name", cred.Name, "error", res.PingError)
		case res.AuthStatus == "error":
			logger.Warn("auth failed", "name", cred.Name, "error", res.AuthError)
		default:
			logger.Info("credential ok", "name", cred.Name, "auth", res.AuthStatus)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("wpnode starting", "version", version, "listen", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func execCommand() *cli.Command {
	return &cli.Command{
		Name:        "exec",
		Usage:       "Run one batch against a configured credential",
		Description: "Read {parameters, items, continue_on_fail} from a JSON file (or - for stdin) and print the output records.",
		ArgsUsage:   "[batch.json]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "credential",
				Usage: "Name of the credential in the config file (optional with a single credential)",
			},
			&cli.BoolFlag{
				Name:  "continue-on-fail",
				Usage: "Turn failed items into error records instead of aborting",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			cred, err := configuredCredential(cfg, cmd.String("credential"))
			if err != nil {
				return err
			}

			in := io.Reader(os.Stdin)
			if path := cmd.Args().First(); path != "" && path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			batch, err := wordpress.DecodeBatch(in, cfg.ContinuesOnFail())
			if err != nil {
				return err
			}

			t, err := wordpress.NewHTTPTransport(cred, wordpress.WithTimeout(cfg.Timeout))
			if err != nil {
				return err
			}
			cache := wordpress.NewOptionCache(cfg.OptionsTTL, nil)
			if cfg.ResolvesRESTBase() {
				if _, err := cache.Refresh(ctx, cred.ID, t); err != nil {
					logger.Warn("type discovery failed, using known types", "error", err)
				}
			}
			d := wordpress.NewDispatcher(t,
				wordpress.WithOptionCache(cache, cred.ID),
				wordpress.WithRESTBaseResolution(cfg.ResolvesRESTBase()),
				wordpress.WithLogger(logger),
				wordpress.WithProgress(func(line string) { logger.Info(line) }),
			)
			records, err := d.Execute(ctx, batch)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
}

func optionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "options",
		Usage: "Print the resource dropdown of a configured credential",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "credential",
				Usage: "Name of the credential in the config file (optional with a single credential)",
			},
			&cli.StringFlag{
				Name:  "acf",
				Usage: "Print the ACF field keys for this resource instead",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("acf") {
				return printJSON(wordpress.ACFFieldKeys(cmd.String("acf")))
			}
			cred, err := configuredCredential(cfg, cmd.String("credential"))
			if err != nil {
				return err
			}
			cache := wordpress.NewOptionCache(cfg.OptionsTTL, nil)
			var t wordpress.Transport
			if ht, err := wordpress.NewHTTPTransport(cred, wordpress.WithTimeout(cfg.Timeout)); err == nil {
				t = ht
			}
			return printJSON(cache.ResourceOptions(ctx, cred.ID, t))
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:      "schema",
		Usage:     "Print the credential and node descriptors",
		ArgsUsage: "[credential|node]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			switch cmd.Args().First() {
			case "credential":
				return printJSON(wordpress.CredentialDescriptor())
			case "node":
				return printJSON(wordpress.NodeDescriptor())
			case "":
				return printJSON([]wordpress.Descriptor{wordpress.CredentialDescriptor(), wordpress.NodeDescriptor()})
			default:
				return fmt.Errorf("unknown descriptor %q (want credential or node)", cmd.Args().First())
			}
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
