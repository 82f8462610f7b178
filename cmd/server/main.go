package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luoluoluo22/baidu-search-api/internal/config"
	"github.com/luoluoluo22/baidu-search-api/internal/engine"
	"github.com/luoluoluo22/baidu-search-api/internal/logger"
	"github.com/luoluoluo22/baidu-search-api/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	root, _ := newRootCmd()
	if err := root.Execute(); err != nil {
		logger.L().Error("❌ Command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// newRootCmd 每次构建独立的命令树，返回的配置指针在 PersistentPreRunE 之后可用
func newRootCmd() (*cobra.Command, **config.Config) {
	var (
		cfgFile string
		cfg     *config.Config
	)

	root := &cobra.Command{
		Use:           "baidu-search-api",
		Short:         "Search Zhihu and Baidu over HTTP and MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				if err := os.Setenv("CONFIG_FILE", cfgFile); err != nil {
					return fmt.Errorf("set config path: %w", err)
				}
			}

			var notes []string
			cfg, notes = config.Load()
			log := logger.Init(cfg.Log)
			for _, n := range notes {
				log.Info(n)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	serve := newServeCmd(&cfg)
	// 不带子命令时启动服务
	root.Args = cobra.NoArgs
	root.RunE = serve.RunE
	root.AddCommand(serve, newSearchCmd(&cfg))
	return root, &cfg
}

func newServeCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP search API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := logger.L()
	log.Info("🔍 Starting search API server...")
	cfg.Print(log)

	engineManager := engine.NewManager(cfg, log)
	defer engineManager.Close()

	srv := server.New(cfg, engineManager, log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("⚠️ Graceful shutdown incomplete", zap.Error(err))
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("👋 Server stopped")
	return nil
}

func newSearchCmd(cfg **config.Config) *cobra.Command {
	var (
		engines []string
		limit   int
		page    int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single search and print the results as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			engineManager := engine.NewManager(*cfg, logger.L())
			defer engineManager.Close()

			results, err := engineManager.Search(ctx, engine.SearchRequest{
				Query:   args[0],
				Limit:   limit,
				Page:    page,
				Engines: engines,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(results)
		},
	}
	cmd.Flags().StringSliceVarP(&engines, "engine", "e", nil, "search engines to use (default from config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (default from config)")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "result page, starting at 1")
	return cmd
}
