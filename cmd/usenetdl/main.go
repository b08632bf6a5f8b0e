package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/jvz-devx/usenet-dl-sub002/internal/api"
	"github.com/jvz-devx/usenet-dl-sub002/internal/app"
	"github.com/jvz-devx/usenet-dl-sub002/internal/engine"
	"github.com/jvz-devx/usenet-dl-sub002/internal/infra/config"
	"github.com/jvz-devx/usenet-dl-sub002/internal/infra/logger"
)

const version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "usenetdl",
	Short: "usenetdl is a headless Usenet download engine",
	Long:  "A concurrent, queue-driven NZB download and post-processing engine.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the download engine and its HTTP control surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Admit an NZB file into the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the usenetdl version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version)
		return nil
	},
}

var (
	addFile     string
	addCategory string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config.yaml")
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "path to the NZB file (required)")
	addCmd.Flags().StringVar(&addCategory, "category", "", "category to admit the download under")
	_ = addCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(serveCmd, addCmd, versionCmd)
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, err := app.New(cfg, log, true)
	if err != nil {
		return err
	}
	defer ctx.Close()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received, draining in-flight downloads...")
		cancel()
	}()

	if err := engine.Restore(runCtx, ctx.Store); err != nil {
		log.Error("restore: %v", err)
	}

	go ctx.Queue.Start(runCtx)
	go ctx.Scheduler.Run(runCtx)
	go ctx.RunNotifications(runCtx)
	if ctx.Watcher != nil {
		go func() {
			if err := ctx.Watcher.Run(runCtx); err != nil {
				log.Error("watcher: %v", err)
			}
		}()
	}

	e := echo.New()
	apiApp := &api.App{
		Store:     ctx.Store,
		Queue:     ctx.Queue,
		Events:    ctx.Events,
		Logger:    log,
		Admitter:  ctx.Admitter,
		UploadDir: cfg.Download.TempDir,
	}
	api.RegisterRoutes(e, apiApp)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + port)
	}()

	select {
	case <-runCtx.Done():
		_ = e.Close()
		ctx.Queue.Stop()
		log.Info("shutdown complete")
		return nil
	case err := <-serverErr:
		return err
	}
}

func runAdd() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ctx, err := app.New(cfg, log, false)
	if err != nil {
		return err
	}
	defer ctx.Close()

	id, err := ctx.Admitter.AddFile(context.Background(), addFile, nil, addCategory)
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}
	fmt.Printf("admitted download %d\n", id)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
