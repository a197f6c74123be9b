package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/suri/internal/config"
	"github.com/andresmejia3/suri/internal/logger"
	"github.com/andresmejia3/suri/internal/suri"
	"github.com/andresmejia3/suri/internal/utils"
	"github.com/andresmejia3/suri/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	// Cfg is the configuration shared by subcommands
	Cfg *config.Config
	// Service is the face service client shared by subcommands
	Service workflow.Service

	configPath string
	quiet      bool
)

// flagKeys maps flag names onto config keys so flags win over env and file values.
var flagKeys = map[string]string{
	"url":       "service.url",
	"timeout":   "service.timeout",
	"log-level": "log.level",
	"log-file":  "log.file",
	"addr":      "stub.addr",
}

// Version is the application version.
const Version = "0.1.0"

// ExitError asks Execute to exit with Code without printing anything else;
// the command has already reported the problem.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

var rootCmd = &cobra.Command{
	Use:           "suri",
	Short:         "Enrollment & recognition client for the SURI face service",
	Version:       Version, // This enables the --version flag
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, cmd.Flags(), flagKeys)
		if err != nil {
			return err
		}
		if err := logger.Init(cfg.Log); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		Cfg = cfg

		client, err := suri.NewClient(suri.Options{
			BaseURL:   cfg.Service.URL,
			Timeout:   cfg.Service.Timeout,
			UserAgent: "suri/" + Version,
		})
		if err != nil {
			return err
		}
		Service = &spinningService{Service: client, enabled: !quiet && utils.StderrIsTerminal()}
		return nil
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			stop()
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./suri.yaml if present)")
	rootCmd.PersistentFlags().String("url", "", "Face service base URL (default: http://localhost:8000)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Per-request timeout (default: 30s)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default: info)")
	rootCmd.PersistentFlags().String("log-file", "", "Also append logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Do not draw the progress spinner")
}

// imageArg returns args[i] when present, otherwise the configured default image.
func imageArg(args []string, i int) string {
	if len(args) > i && args[i] != "" {
		return args[i]
	}
	if Cfg != nil {
		return Cfg.Image.Path
	}
	return "face.jpg"
}

// fail reports err in a box and converts it into a silent exit 1.
func fail(context string, err error) error {
	utils.ShowError(context, err)
	return &ExitError{Code: 1, Err: err}
}
