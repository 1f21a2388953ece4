package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskbridge/internal/agents"
	"taskbridge/internal/config"
	"taskbridge/internal/logger"
	"taskbridge/pkg/bootstrap"
	"taskbridge/pkg/logging"
)

var (
	configFile string
	seedFile   string
)

// agentctl seeds and inspects the agent configuration store. It talks
// to Redis directly and does not touch the task API: seeded entries
// carry whatever API key the seed file provides.
func main() {
	rootCmd := &cobra.Command{
		Use:   "agentctl",
		Short: "Manage agent configurations in the store",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (optional, environment variables otherwise)")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load agent configurations from a JSON file into the store",
		RunE:  runSeed,
	}
	seedCmd.Flags().StringVar(&seedFile, "file", "", "JSON file mapping agent ids to configurations (required)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List agent configurations in the store",
		RunE:  runList,
	}

	rootCmd.AddCommand(seedCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (*agents.RedisStore, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}

	rdb, err := bootstrap.NewStoreConnector(cfg, log).InitRedis(ctx)
	if err != nil {
		return nil, nil, err
	}

	return agents.NewRedisStore(rdb, log), log, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedFile == "" {
		return fmt.Errorf("--file is required")
	}

	ctx := cmd.Context()

	store, log, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	defer log.Sync()

	raw, err := os.ReadFile(seedFile)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var configs map[string]agents.AgentConfig
	if err := json.Unmarshal(raw, &configs); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for agentID, cfg := range configs {
		if err := store.Set(ctx, agentID, cfg); err != nil {
			return fmt.Errorf("seed agent %s: %w", agentID, err)
		}
		log.Infow("Seeded agent config", "agent_id", agentID, "name", cfg.Name)
	}

	log.Infow("Seeding complete", "count", len(configs))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, log, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	defer log.Sync()

	ids, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	if len(ids) == 0 {
		fmt.Println("no agent configurations found")
		return nil
	}

	for _, id := range ids {
		cfg, err := store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("load agent %s: %w", id, err)
		}
		if cfg == nil {
			continue
		}
		fmt.Printf("%s\t%s\n", id, cfg.Name)
	}
	return nil
}
