// Package main is the ReguBot CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/cli"
	"github.com/hyperjump/regubot/internal/config"
	"github.com/hyperjump/regubot/internal/indexer"
	"github.com/hyperjump/regubot/internal/mcp"
	"github.com/hyperjump/regubot/internal/server"
	"github.com/hyperjump/regubot/internal/watcher"
	"github.com/hyperjump/regubot/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/regubot/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseOutput(s string) (cli.OutputFormat, error) {
	switch s {
	case "text", "":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

type rootOptions struct {
	configPath string
	debug      bool
}

// setup loads config and creates the logger shared by every command.
func (o *rootOptions) setup() (*config.Config, string, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(o.configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || o.debug)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, resolved, logger, nil
}

func main() {
	// .env is optional; it only supplies API keys that are not already exported.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "regubot",
		Short: "Procurement regulation assistant",
		Long: `ReguBot answers questions about procurement of goods/services regulations.

Upload regulation documents (PDF, DOCX, XLSX, OpenDocument, Markdown, text) to build a
similarity index; questions are then answered from the uploaded passages with
citations checked against the regulation catalog.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serverCmd(opts))
	rootCmd.AddCommand(ingestCmd(opts))
	rootCmd.AddCommand(askCmd(opts))
	rootCmd.AddCommand(statusCmd(opts))
	rootCmd.AddCommand(historyCmd(opts))
	rootCmd.AddCommand(mcpCmd(opts))
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "regubot version %s\n", version)
		},
	}
}

func serverCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server and the inbox watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedConfigPath, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("config loaded",
				zap.String("config_path", resolvedConfigPath),
				zap.Bool("debug", cfg.Debug || opts.debug),
			)

			components, err := initializeComponents(cfg, logger, true)
			if err != nil {
				return err
			}
			defer components.Close()

			watchSvc := watcher.NewWatcher(
				cfg.Watch.Directories,
				cfg.Watch.Extensions,
				cfg.Watch.RecursiveOrDefault(),
				components.Indexer,
				watcher.WithLogger(logger),
				watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond),
				watcher.WithNotify(func(path string, res *indexer.IngestResult, err error) {
					if err != nil || res == nil {
						return
					}
					for _, w := range res.Warnings {
						logger.Warn("ingest warning", zap.String("path", path), zap.String("warning", w))
					}
				}),
			)
			watchCtx, watchCancel := context.WithCancel(context.Background())
			defer watchCancel()
			if err := watchSvc.Start(watchCtx); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			watchSvc.SyncExistingFiles()

			srv := server.NewServer(components.Assistant, components.Indexer, cfg, logger, watchSvc, resolvedConfigPath)
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sigChan:
			case err := <-errCh:
				watchSvc.Stop()
				return fmt.Errorf("server failed: %w", err)
			}

			logger.Info("Shutting down...")
			watchSvc.Stop()
			watchCancel()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(ctx)
		},
	}
}

func ingestCmd(opts *rootOptions) *cobra.Command {
	var serverURL, output string
	cmd := &cobra.Command{
		Use:   "ingest <file-or-directory>...",
		Short: "Add regulation documents to the index",
		Long: `Add regulation documents to the index.

With --server the files are uploaded to a running server; otherwise the index
is written directly. Directories are walked for supported formats.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutput(output)
			if err != nil {
				return err
			}
			if serverURL != "" {
				files, err := expandIngestPaths(args, nil)
				if err != nil {
					return err
				}
				res, err := uploadViaHTTP(serverURL, files)
				return reportIngest(cmd, res, err, format)
			}

			cfg, _, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger, false)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx := cmd.Context()
			for _, path := range args {
				res, err := ingestPath(ctx, components.Indexer, path, cfg.Watch.Extensions)
				if err := reportIngest(cmd, res, err, format); err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "upload to a running server at this URL instead of writing the index directly")
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
	return cmd
}

// reportIngest writes res when there is one; a batch that produced no text is
// still reported before its error is returned.
func reportIngest(cmd *cobra.Command, res *indexer.IngestResult, err error, format cli.OutputFormat) error {
	if err != nil && !errors.Is(err, indexer.ErrNothingToIngest) {
		return err
	}
	if res != nil {
		if werr := cli.WriteIngestResult(cmd.OutOrStdout(), res, format); werr != nil {
			return werr
		}
	}
	return err
}

func ingestPath(ctx context.Context, idx *indexer.Indexer, path string, exts []string) (*indexer.IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return idx.IngestDirectory(ctx, path, exts)
	}
	return idx.IngestFile(ctx, path)
}

func askCmd(opts *rootOptions) *cobra.Command {
	var serverURL, sessionID, output string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the uploaded regulations",
		Long: `Ask a question about the uploaded regulations.

The question is all remaining arguments joined by spaces, so quoting is optional.
With --server the running server answers; use --server "" to answer directly.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := buildQuestion(args)
			if question == "" {
				return fmt.Errorf("question is empty")
			}
			format, err := parseOutput(output)
			if err != nil {
				return err
			}
			if serverURL != "" {
				resp, err := askViaHTTP(serverURL, sessionID, question)
				if err != nil {
					return fmt.Errorf("ask failed: %w", err)
				}
				return cli.WriteEnvelope(cmd.OutOrStdout(), resp.ResponseEnvelope, format)
			}

			cfg, _, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger, true)
			if err != nil {
				return err
			}
			defer components.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			env := components.Assistant.Ask(cmd.Context(), sessionID, question)
			return cli.WriteEnvelope(cmd.OutOrStdout(), env, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "server URL (empty = answer directly without a running server)")
	cmd.Flags().StringVar(&sessionID, "session", "", "conversation session id (default: a new session)")
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
	return cmd
}

func statusCmd(opts *rootOptions) *cobra.Command {
	var serverURL, output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show uploaded documents and index status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutput(output)
			if err != nil {
				return err
			}
			if serverURL != "" {
				st, err := statusViaHTTP(serverURL)
				if err != nil {
					return fmt.Errorf("status failed: %w", err)
				}
				return cli.WriteStatus(cmd.OutOrStdout(), st, format)
			}

			cfg, _, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger, false)
			if err != nil {
				return err
			}
			defer components.Close()

			st, err := components.Assistant.Status(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), st, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "server URL (empty = read storage directly)")
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
	return cmd
}

func historyCmd(opts *rootOptions) *cobra.Command {
	var serverURL, output string
	var limit int
	var clear bool
	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show or clear the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			format, err := parseOutput(output)
			if err != nil {
				return err
			}
			if serverURL != "" {
				if clear {
					if err := clearHistoryViaHTTP(serverURL, sessionID); err != nil {
						return fmt.Errorf("clear failed: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared: %s\n", sessionID)
					return nil
				}
				msgs, err := historyViaHTTP(serverURL, sessionID, limit)
				if err != nil {
					return fmt.Errorf("history failed: %w", err)
				}
				return cli.WriteHistory(cmd.OutOrStdout(), msgs, format)
			}

			cfg, _, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger, false)
			if err != nil {
				return err
			}
			defer components.Close()

			if clear {
				if err := components.Assistant.ClearHistory(cmd.Context(), sessionID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared: %s\n", sessionID)
				return nil
			}
			msgs, err := components.Assistant.History(cmd.Context(), sessionID, limit)
			if err != nil {
				return err
			}
			return cli.WriteHistory(cmd.OutOrStdout(), msgs, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "server URL (empty = read storage directly)")
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the latest n messages (0 = all)")
	cmd.Flags().BoolVar(&clear, "clear", false, "forget the session's messages")
	return cmd
}

func mcpCmd(opts *rootOptions) *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant as MCP tools",
		Long: `Serve the assistant as Model Context Protocol tools.

By default the server speaks over stdin/stdout; use --http to serve the
streamable HTTP transport instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger, true)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv := mcp.NewServer(components.Assistant, version, logger)
			if httpAddr != "" {
				logger.Info("Starting MCP server", zap.String("addr", httpAddr))
				return srv.RunHTTP(ctx, httpAddr)
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}

func watchCmd() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage inbox directories watched by a running server",
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL, "server URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "add <path>",
		Short: "Watch a directory and ingest its existing files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if err := watchAddViaHTTP(serverURL, path); err != nil {
				return fmt.Errorf("add failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <path>",
		Short: "Stop watching a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if err := watchRemoveViaHTTP(serverURL, path); err != nil {
				return fmt.Errorf("remove failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List watched directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := watchListViaHTTP(serverURL)
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}
			if len(dirs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No directories are watched.")
				return nil
			}
			for _, d := range dirs {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	})
	return cmd
}
