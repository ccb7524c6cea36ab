package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"parley/internal/assistant"
	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/semantic"
	"parley/internal/store"
	"parley/internal/types"
)

const version = "0.1.0"

var (
	configPath string
	verbose    bool
	dbPath     string
	sessionID  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "parley - conversational understanding core",
	Long: `parley classifies utterances into intents, decomposes compound
queries into task graphs, tracks per-session memory and preferences, and
routes intents through a prioritized handler chain.

Run without arguments to start an interactive chat loop.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		return logging.Initialize(logging.Options{
			Level:      level,
			Categories: cfg.Logging.Categories,
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("parley %s\n", version)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Classify a single utterance and print the intent",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := buildCore()
		if err != nil {
			return err
		}
		defer core.Shutdown(cmd.Context())

		text := strings.Join(args, " ")
		intent := core.ClassifyIntent(cmd.Context(), sessionID, text)
		fmt.Printf("category:   %s\nconfidence: %.2f\nsource:     %s\n",
			intent.Category, intent.Confidence, intent.Source)
		for name, entity := range intent.Entities {
			fmt.Printf("entity:     %s = %q\n", name, entity.Value)
		}
		for name, fill := range intent.Slots {
			fmt.Printf("slot:       %s filled=%v value=%q\n", name, fill.Filled, fill.Value)
		}
		return nil
	},
}

var decomposeCmd = &cobra.Command{
	Use:   "decompose [text]",
	Short: "Decompose a compound query into its task graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := buildCore()
		if err != nil {
			return err
		}
		defer core.Shutdown(cmd.Context())

		tasks := core.DecomposeQuery(strings.Join(args, " "))
		for _, task := range tasks {
			fmt.Printf("[%d] %-12s deps=%v  %s\n", task.Index, task.Kind, task.DependsOn, task.Text)
		}
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.Memory.DatabasePath = dbPath
	}
	return cfg, nil
}

func buildCore() (*assistant.Assistant, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	provider, err := semantic.NewProvider(cfg.Embedding)
	if err != nil {
		logging.Get(logging.CategoryBoot).Warn("Embedding provider unavailable, running degraded: %v", err)
		provider = nil
	}

	var backend types.PersistenceBackend
	if cfg.Memory.DatabasePath != "" {
		sqlite, err := store.NewSQLiteBackend(cfg.Memory.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		backend = sqlite
	} else {
		backend = store.NewMemoryBackend()
	}

	return assistant.New(cfg, provider, backend)
}

func runChat() error {
	core, err := buildCore()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer core.Shutdown(context.Background())

	fmt.Printf("parley %s — type your message, /quit to exit\n", version)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}
		if ctx.Err() != nil {
			break
		}

		result, err := core.Process(ctx, sessionID, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(result.Response())
	}
	return scanner.Err()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override database path")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "session id")
	rootCmd.AddCommand(versionCmd, classifyCmd, decomposeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
