package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/casefile/internal/config"
	"github.com/kirillkom/casefile/internal/core/ports"
	"github.com/kirillkom/casefile/internal/core/usecase"
	"github.com/kirillkom/casefile/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/casefile/internal/infrastructure/preparer/pdfprep"
	"github.com/kirillkom/casefile/internal/infrastructure/queue/nats"
	"github.com/kirillkom/casefile/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/casefile/internal/infrastructure/resilience"
	"github.com/kirillkom/casefile/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/casefile/internal/infrastructure/storage/minio"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Docs  ports.DocumentRepository

	SubmitUC    ports.BatchSubmitter
	ProcessUC   ports.BatchProcessor
	StatusUC    ports.BatchStatusReader
	SynthesisUC ports.SynthesisService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	docs := postgres.NewDocumentRepository(db)
	if err := docs.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	syntheses := postgres.NewSynthesisRepository(db)

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
		RequestsPerSecond: float64(cfg.InferRatePerSecond),
		CallTimeout:       time.Duration(cfg.InferCallTimeoutSeconds) * time.Second,
		Executor:          executor,
	})
	classifier := ollama.NewClassifier(ollamaClient)
	extractor := ollama.NewExtractor(ollamaClient)
	synthesizer := ollama.NewSynthesizer(ollamaClient)

	preparer := pdfprep.New(cfg.MinTextChars)

	submitUC := usecase.NewSubmitBatchUseCase(docs, storage, queue, cfg.DefaultOutputLanguage)
	synthesisUC := usecase.NewSynthesizeCaseUseCase(docs, syntheses, synthesizer, cfg.DefaultOutputLanguage)
	processUC := usecase.NewProcessBatchUseCase(docs, storage, preparer, classifier, extractor, synthesisUC, cfg.IngestMaxConcurrency)
	statusUC := usecase.NewBatchStatusUseCase(docs, syntheses)

	return &App{
		Config: cfg,
		Queue:  queue,
		Docs:   docs,

		SubmitUC:    submitUC,
		ProcessUC:   processUC,
		StatusUC:    statusUC,
		SynthesisUC: synthesisUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// newObjectStorage picks minio when an endpoint is configured and falls back
// to the local filesystem store otherwise.
func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	if cfg.MinioEndpoint == "" {
		return localfs.New(cfg.StoragePath)
	}

	storage, err := minio.New(minio.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return storage, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
