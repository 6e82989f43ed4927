package di

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/adapters/bundle"
	"github.com/rotz/email-predictor/internal/config"
	"github.com/rotz/email-predictor/internal/core"
	"github.com/rotz/email-predictor/internal/factory"
	"github.com/rotz/email-predictor/internal/logging"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}

	// Register the historical store behind both of its ports
	if err := container.Provide(func(f *factory.StoreFactory) (core.EmailRepository, core.MetadataRepository, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register the signal cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.SignalCache, error) {
		return f.CreateSignalCache()
	}); err != nil {
		return nil, err
	}

	// Register the bundle store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.BundleStore, error) {
		return bundle.NewFSStore(cfg.GetModels().Dir, logger)
	}); err != nil {
		return nil, err
	}

	// Register the feature extractor
	if err := container.Provide(func(
		cfg *config.Config,
		emails core.EmailRepository,
		signals core.SignalCache,
		logger *zap.Logger,
	) (*core.FeatureExtractor, error) {
		ttl, err := cfg.GetDuration("cache.ttl")
		if err != nil {
			return nil, err
		}
		return core.NewFeatureExtractor(emails, signals, logger, cfg.GetBool("features.nlp_enabled"), ttl), nil
	}); err != nil {
		return nil, err
	}

	// Register the corpus builder
	if err := container.Provide(func(
		cfg *config.Config,
		emails core.EmailRepository,
		extractor *core.FeatureExtractor,
		logger *zap.Logger,
	) *core.CorpusBuilder {
		training := cfg.GetTraining()
		window := time.Duration(training.WindowDays) * 24 * time.Hour
		return core.NewCorpusBuilder(emails, extractor, logger, training.MinSamples, window, training.MaxRows)
	}); err != nil {
		return nil, err
	}

	// Register the model selector
	if err := container.Provide(func(
		cfg *config.Config,
		corpus *core.CorpusBuilder,
		bundles core.BundleStore,
		metadata core.MetadataRepository,
		logger *zap.Logger,
	) *core.ModelSelector {
		training := cfg.GetTraining()
		return core.NewModelSelector(corpus, bundles, metadata, logger, training.TestFraction, training.Seed)
	}); err != nil {
		return nil, err
	}

	// Register the inference engine
	if err := container.Provide(func(
		cfg *config.Config,
		extractor *core.FeatureExtractor,
		bundles core.BundleStore,
		logger *zap.Logger,
	) *core.InferenceEngine {
		return core.NewInferenceEngine(extractor, bundles, logger, cfg.GetModels().ImportanceThreshold)
	}); err != nil {
		return nil, err
	}

	// Register the retrain scheduler
	if err := container.Provide(func(
		cfg *config.Config,
		emails core.EmailRepository,
		metadata core.MetadataRepository,
		selector *core.ModelSelector,
		logger *zap.Logger,
	) (*core.RetrainScheduler, error) {
		interval, err := cfg.GetDuration("training.update_interval")
		if err != nil {
			return nil, err
		}
		return core.NewRetrainScheduler(emails, metadata, selector, logger, interval, cfg.GetTraining().MinNewEmails), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
