package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobpulse/notifier/internal/analytics"
	"github.com/jobpulse/notifier/internal/logger"
	"github.com/jobpulse/notifier/internal/notify"
	"github.com/jobpulse/notifier/internal/pipeline"
	"github.com/jobpulse/notifier/internal/profiles"
	"github.com/jobpulse/notifier/internal/secrets"
	"github.com/jobpulse/notifier/internal/skills"
	"github.com/jobpulse/notifier/internal/store"
)

// mustLogger builds the process logger. Used directly on failure paths where
// the runtime never came up.
func mustLogger() *zap.Logger {
	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return zlog
}

// runtime holds the shared collaborators every pipeline command needs. Built
// once per command invocation and closed when the command returns.
type runtime struct {
	config *Config
	logger *zap.Logger
	store  *store.SQLite
	source *analytics.Source
}

// newRuntime loads the configuration, opens the operational store and
// connects to the analytics warehouse.
func newRuntime(ctx context.Context) (*runtime, error) {
	zlog := mustLogger()

	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}
	if config == nil {
		return nil, errors.New("config is required")
	}

	zlog.Info("starting the notifier", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	zlog.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	db, err := store.NewSQLite(config.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening store at %q: %w", config.StorePath, err)
	}

	dsn, err := resolveAnalyticsDSN(config)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf(
			"loading analytics dsn (set NOTIFIER_ANALYTICS_DSN_FILE or the 'analytics' section in the configuration file): %w", err)
	}

	source, err := analytics.New(ctx, dsn, zlog)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to analytics: %w", err)
	}

	return &runtime{
		config: config,
		logger: zlog,
		store:  db,
		source: source,
	}, nil
}

func (r *runtime) Close() {
	r.source.Close()
	if err := r.store.Close(); err != nil {
		r.logger.Warn("closing store", zap.Error(err))
	}
}

// offersPipeline wires the offer reconciliation pipeline, including the
// authenticated profile-service client.
func (r *runtime) offersPipeline() (*pipeline.Offers, error) {
	matcher, err := r.profilesClient()
	if err != nil {
		return nil, err
	}

	cfg := pipeline.OffersConfig{
		DaysBack:  viper.GetInt("pipeline.days-back"),
		MaxSkills: viper.GetInt("pipeline.max-skills"),
	}
	return pipeline.NewOffers(cfg, pipeline.OffersDeps{
		Source:    r.source,
		Ledger:    r.store,
		Extractor: skills.NewDefaultExtractor(),
		Matcher:   matcher,
		Emitter:   notify.New(r.store, r.logger),
		Logger:    r.logger,
	})
}

// postulationsPipeline wires the application increment pipeline. It needs no
// profile service access.
func (r *runtime) postulationsPipeline() *pipeline.Postulations {
	cfg := pipeline.PostulationsConfig{
		NotifyFirstSighting: viper.GetBool("pipeline.notify-first-sighting"),
	}
	return pipeline.NewPostulations(cfg, pipeline.PostulationsDeps{
		Source:    r.source,
		Snapshots: r.store,
		Emitter:   notify.New(r.store, r.logger),
		Logger:    r.logger,
	})
}

func (r *runtime) profilesClient() (*profiles.Client, error) {
	cfg := r.config.Profiles
	if cfg == nil || cfg.APIURL == "" || cfg.AuthURL == "" || cfg.Email == "" {
		return nil, errors.New("profiles api-url, auth-url and email are required in the configuration file")
	}

	password, err := secrets.Load(secrets.Source{
		Name:  "profile service password",
		Value: cfg.Password,
		File:  cfg.PasswordFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set NOTIFIER_PROFILES_PASSWORD_FILE or profiles.password-file)", err)
	}

	return profiles.New(cfg.APIURL, cfg.AuthURL, cfg.Email, password, r.logger), nil
}

func resolveAnalyticsDSN(config *Config) (string, error) {
	src := secrets.Source{Name: "analytics dsn"}
	if config.Analytics != nil {
		src.Value = config.Analytics.DSN
		src.File = config.Analytics.DSNFile
	}
	if src.File == "" {
		src.File = viper.GetString("analytics.dsn-file")
	}
	return secrets.Load(src)
}

// printSummary writes a run summary as indented JSON to stdout so scheduled
// runs leave a machine-readable trail next to the logs.
func printSummary(v any) {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stdout, string(pretty))
}
