package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/adapters/bundle"
	"github.com/rotz/email-predictor/internal/config"
	"github.com/rotz/email-predictor/internal/core"
	"github.com/rotz/email-predictor/internal/factory"
	"github.com/rotz/email-predictor/internal/logging"
)

var (
	action  = flag.String("action", "", "Action to perform (train, predict, evaluate)")
	userID  = flag.Int64("user-id", 0, "User ID for personalized models (0 = global)")
	emailID = flag.Int64("email-id", 0, "Email ID for prediction")

	// Input flags
	inputFile  = flag.String("file", "", "RFC-822 email file to score (use stdin if \"-\")")
	configFile = flag.String("config", "", "Path to config file (default: search standard locations)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.NewFromFile(*configFile)
	} else {
		cfg, err = config.New()
	}
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	emails, metadata, err := factory.NewStoreFactory(cfg, logger).CreateStore()
	if err != nil {
		logger.Fatal("Failed to create email store", zap.Error(err))
	}
	defer func() {
		if closer, ok := emails.(interface{ Close() error }); ok {
			closer.Close()
		}
	}()

	signals, err := factory.NewCacheFactory(cfg, logger).CreateSignalCache()
	if err != nil {
		logger.Fatal("Failed to create signal cache", zap.Error(err))
	}

	bundles, err := bundle.NewFSStore(cfg.GetModels().Dir, logger)
	if err != nil {
		logger.Fatal("Failed to create bundle store", zap.Error(err))
	}

	ttl, err := cfg.GetDuration("cache.ttl")
	if err != nil {
		logger.Fatal("Invalid cache TTL", zap.Error(err))
	}
	extractor := core.NewFeatureExtractor(emails, signals, logger, cfg.GetBool("features.nlp_enabled"), ttl)

	training := cfg.GetTraining()
	window := time.Duration(training.WindowDays) * 24 * time.Hour
	corpus := core.NewCorpusBuilder(emails, extractor, logger, training.MinSamples, window, training.MaxRows)
	selector := core.NewModelSelector(corpus, bundles, metadata, logger, training.TestFraction, training.Seed)
	engine := core.NewInferenceEngine(extractor, bundles, logger, cfg.GetModels().ImportanceThreshold)

	ctx := context.Background()

	switch *action {
	case "train":
		scores, err := selector.Train(ctx, *userID)
		if err != nil {
			logger.Fatal("Training failed", zap.Error(err))
		}
		fmt.Printf("Training completed. Scores:\n%s\n", mustJSON(scores))

	case "predict":
		email, err := resolveEmail(ctx, emails, logger)
		if err != nil {
			logger.Fatal("Failed to load email", zap.Error(err))
		}
		prediction := engine.Predict(ctx, email, *userID)
		fmt.Printf("%s\n", mustJSON(prediction))

	case "evaluate":
		scope := core.GlobalScope
		if *userID != 0 {
			scope = core.UserScope(*userID)
		}
		meta, err := metadata.Latest(ctx, scope)
		if err != nil {
			logger.Fatal("Failed to read model performance", zap.String("scope", scope), zap.Error(err))
		}
		fmt.Printf("=== Model Performance (%s) ===\n", scope)
		fmt.Printf("Model type: %s\n", meta.ModelType)
		fmt.Printf("Accuracy:   %.4f\n", meta.Accuracy)
		fmt.Printf("Trained at: %s\n", meta.TrainedAt.Format(time.RFC3339))
		fmt.Printf("Scores:\n%s\n", mustJSON(meta.Scores))

	default:
		fmt.Println("Usage: predictor -action train|predict|evaluate [-user-id N] [-email-id N] [-file PATH]")
		os.Exit(2)
	}
}

// resolveEmail loads the email to score, either by ID from the store or
// by parsing an RFC-822 message from a file or stdin.
func resolveEmail(ctx context.Context, emails core.EmailRepository, logger *zap.Logger) (*core.EmailRecord, error) {
	if *emailID != 0 {
		return emails.EmailByID(ctx, *emailID)
	}
	if *inputFile == "" {
		return nil, fmt.Errorf("predict requires -email-id or -file")
	}

	var emailReader io.Reader
	if *inputFile == "-" {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	} else {
		f, err := os.Open(*inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		emailReader = f
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	}

	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read email body: %w", err)
	}

	receivedAt := time.Now()
	if parsed, err := msg.Header.Date(); err == nil {
		receivedAt = parsed
	}

	return &core.EmailRecord{
		Sender:     msg.Header.Get("From"),
		Subject:    msg.Header.Get("Subject"),
		Body:       string(bodyBytes),
		ReceivedAt: receivedAt,
		Recipients: splitAddresses(msg.Header.Get("To")),
	}, nil
}

func splitAddresses(to string) []string {
	if to == "" {
		return nil
	}
	parts := strings.Split(to, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func mustJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
