// Command hfql runs HFQL queries against FHIR resources held in memory or in
// MongoDB, optionally caching searches in Redis.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/omniql-engine/hfql"
	"github.com/omniql-engine/hfql/engine/executor"
	"github.com/omniql-engine/hfql/engine/fhirpath"
	"github.com/omniql-engine/hfql/engine/search"
	"github.com/omniql-engine/hfql/internal/config"
)

type globalFlags struct {
	configFile string
	data       string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "hfql",
		Short:         "Query FHIR resources with HFQL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "JSON configuration file")
	root.PersistentFlags().StringVar(&flags.data, "data", "", "FHIR JSON file or directory for the memory provider")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (overrides the configuration)")

	root.AddCommand(newQueryCmd(flags), newParseCmd(), newShellCmd(flags))
	return root
}

// loadConfig reads the configuration file, if any, and applies flag overrides
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.configFile != "" {
		loaded, err := config.Load(flags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.data != "" {
		cfg.Provider = config.ProviderMemory
		cfg.Data = flags.data
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.SetLevel(cfg.Level())
	return cfg, nil
}

// newClient builds a client for cfg. The returned function releases its connections.
func newClient(ctx context.Context, cfg *config.Config) (*hfql.Client, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	evaluator := fhirpath.New()
	var searcher executor.Searcher
	switch cfg.Provider {
	case config.ProviderMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		closers = append(closers, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.WithError(err).Warn("Failed to disconnect from mongo")
			}
		})
		searcher = search.NewMongoSearcher(client.Database(cfg.Mongo.Database))
	default:
		store := search.NewMemoryStore()
		if cfg.Data != "" {
			n, err := store.LoadPath(cfg.Data)
			if err != nil {
				return nil, nil, err
			}
			log.WithFields(log.Fields{"path": cfg.Data, "resources": n}).Debug("Loaded resources")
		}
		searcher = search.NewMemorySearcher(store, evaluator)
	}

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		searcher = search.NewRedisCache(rdb, searcher, cfg.Redis.TTL.Duration)
	}

	log.WithFields(log.Fields{
		"provider": cfg.Provider,
		"cache":    cfg.Redis.Enabled(),
	}).Info("Starting hfql")
	return hfql.NewClient(searcher, evaluator), closeAll, nil
}
