package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TheMichaelB/travelmap/internal/client"
	"github.com/TheMichaelB/travelmap/internal/config"
	"github.com/TheMichaelB/travelmap/internal/events"
)

var version = "dev"

// Global state set up by PersistentPreRunE.
var (
	cfg       *config.Config
	logger    *events.Logger
	apiClient *client.Client
)

// Global flag values.
var (
	configFile  string
	jsonOutput  bool
	offlineMode bool
	logLevel    string
)

// skipClient marks commands that only need configuration.
const skipClient = "skip-client"

var rootCmd = &cobra.Command{
	Use:     "travelmap",
	Short:   "Track visited places and a travel wishlist in a GitHub repository",
	Version: version,
	Long: `travelmap keeps visits, a wishlist and map settings in one JSON
document in a GitHub repository, writing the whole document back after
every change.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Config file (default: ./travelmap.yaml or ~/.config/travelmap/travelmap.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&offlineMode, "offline", false,
		"Keep the document in the local data directory instead of GitHub")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level override (debug, info, warn, error)")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.NewLoader(configFile).Load()
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Log.Level = strings.ToLower(logLevel)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	events.SetDefault(logger)

	if cmd.Annotations[skipClient] == "true" {
		return nil
	}

	if !offlineMode && cfg.GitHub.Token == "" && term.IsTerminal(int(syscall.Stdin)) {
		token, err := promptSecret("GitHub token (empty for anonymous read access): ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		cfg.GitHub.Token = token
	}

	apiClient, err = client.New(cfg, logger, client.WithOffline(offlineMode))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	return nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(secret)), nil
}

// sessionID correlates the log lines of one invocation.
var sessionID = uuid.NewString()

// commandContext is cancelled on interrupt.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx = events.WithSession(events.WithLogger(ctx, logger), sessionID)
	ctx = events.WithOperation(ctx, cmd.CommandPath())
	return ctx, cancel
}

// execute runs the command line in args and closes the client whether or
// not the command succeeded.
func execute(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if cerr := closeClient(); cerr != nil {
		if err == nil {
			return cerr
		}
		printWarning("Failed to close client: %v", cerr)
	}
	return err
}

func closeClient() error {
	if apiClient == nil {
		return nil
	}
	c := apiClient
	apiClient = nil
	return c.Close()
}

func main() {
	if err := execute(context.Background(), os.Args[1:]); err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
		} else {
			printError("%v", err)
		}
		os.Exit(1)
	}
}
