package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/chunker"
	"github.com/kailas-cloud/docchat/internal/config"
	dbredis "github.com/kailas-cloud/docchat/internal/db/redis"
	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/embedding/hashing"
	"github.com/kailas-cloud/docchat/internal/loader/pdf"
	"github.com/kailas-cloud/docchat/internal/metrics"
	"github.com/kailas-cloud/docchat/internal/prompt"
	"github.com/kailas-cloud/docchat/internal/repository/embcache"
	"github.com/kailas-cloud/docchat/internal/repository/history"
	"github.com/kailas-cloud/docchat/internal/repository/vectorindex"
	openaiTransport "github.com/kailas-cloud/docchat/internal/transport/openai"
	"github.com/kailas-cloud/docchat/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/docchat/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docchat/internal/usecase/health"
	"github.com/kailas-cloud/docchat/internal/usecase/ingest"
)

// app is the wired dependency graph shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	ingest  *ingest.Service
	chat    *chat.Service
	health  *healthuc.Service
	closers []func()
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (a *app, err error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	sessions, pinger, kv, err := a.openSessions(ctx)
	if err != nil {
		return nil, err
	}

	docEmb, queryEmb, model, embChecker := a.buildEmbedders(kv)

	splitter, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.ChunkSize),
		chunker.WithOverlap(*cfg.Chunking.ChunkOverlap),
	)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	indexes := vectorindex.NewStore(cfg.Storage.VectorStoreDir, logger)
	cache := vectorindex.NewCache(indexes, config.Seconds(cfg.Retrieval.IndexCacheTTLSec), metrics.IndexCacheTotal)

	a.ingest = ingest.New(ingest.Deps{
		Loader:    pdf.NewLoader(logger),
		Splitter:  splitter,
		Embedder:  docEmb,
		Model:     model,
		Indexes:   indexes,
		Cache:     cache,
		Sessions:  sessions,
		UploadDir: cfg.Storage.UploadDir,
		Location:  cfg.Location(),
		Logger:    logger,
	})

	prompts, err := prompt.Default()
	if err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}

	llm := openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     config.Seconds(cfg.LLM.TimeoutSec),
		MaxRetries:  *cfg.LLM.MaxRetries,
		RetryDelay:  msDuration(cfg.LLM.RetryDelayMs),
		RateLimit:   cfg.LLM.RatePerSecond,
		Logger:      logger,
	})

	a.chat, err = chat.New(chat.Deps{
		Indexes:  cache,
		Sessions: sessions,
		Prompts:  prompts,
		LLM:      llm,
		Embedder: queryEmb,
		Model:    model,
		Options: chat.Options{
			TopK:            cfg.Retrieval.TopK,
			MinScore:        cfg.Retrieval.MinScore,
			RewriteFallback: cfg.Chat.RewriteFallback,
			MaxHistoryTurns: cfg.Chat.MaxHistoryTurns,
			LogPreviewChars: cfg.Chat.LogPreviewChars,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	a.health = healthuc.New(pinger, embChecker, llm, cfg.Storage.UploadDir, cfg.Storage.VectorStoreDir)

	logger.Info("application wired",
		zap.String("sessions_driver", cfg.Sessions.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", model),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("embedding_cache", kv != nil && cfg.Embedding.Cache),
	)
	return a, nil
}

// openSessions returns the transcript store, its health check (nil for the
// in-memory store) and the redis client when one was opened.
func (a *app) openSessions(ctx context.Context) (history.Store, healthuc.Pinger, *dbredis.Store, error) {
	cfg := a.cfg.Sessions
	switch cfg.Driver {
	case config.DriverRedis, config.DriverValkey:
		kv, err := dbredis.NewStore(dbredis.Config{Addrs: cfg.Addrs, Password: cfg.Password})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s client: %w", cfg.Driver, err)
		}
		a.closers = append(a.closers, kv.Close)
		if err := kv.WaitForReady(ctx, config.Seconds(cfg.ReadinessTimeout)); err != nil {
			return nil, nil, nil, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
		}
		a.logger.Info("session store connected", zap.String("driver", cfg.Driver), zap.Strings("addrs", cfg.Addrs))
		return history.NewRedis(kv, cfg.KeyPrefix, config.Seconds(cfg.TTLSec)), kv, kv, nil

	case config.DriverSQLite:
		st, err := history.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, func() { _ = st.Close() })
		a.logger.Info("session store opened", zap.String("driver", cfg.Driver), zap.String("path", cfg.SQLitePath))
		return st, st, nil, nil

	default:
		return history.NewMemory(), nil, nil, nil
	}
}

// buildEmbedders assembles provider -> cache -> instrumentation -> instruction
// prefix. Documents and queries differ only in the prefix.
func (a *app) buildEmbedders(kv *dbredis.Store) (doc, query domain.Embedder, model string, checker healthuc.ProviderChecker) {
	cfg := a.cfg.Embedding

	var base domain.Embedder
	switch cfg.Provider {
	case config.ProviderHashing:
		h := hashing.New(cfg.Dimensions)
		base, model, checker = h, h.Model(), h
	default:
		e := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Timeout:    config.Seconds(cfg.TimeoutSec),
			Logger:     a.logger,
		})
		base, model, checker = e, e.Model(), e
	}

	inner := base
	if cfg.Cache && kv != nil {
		inner = embcache.New(base, kv, embcache.Config{
			Prefix:     a.cfg.Sessions.KeyPrefix,
			Model:      model,
			TTL:        config.Seconds(cfg.CacheTTLSec),
			CacheTotal: metrics.EmbeddingCacheTotal,
			Logger:     a.logger,
		})
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(inner, cfg.Provider, model, cfg.BatchSize, a.logger)
	doc = domain.NewPrefixEmbedder(instrumented, cfg.DocumentInstruction)
	query = domain.NewPrefixEmbedder(instrumented, cfg.QueryInstruction)
	return doc, query, model, checker
}

// Close releases store connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// exitCode maps a command error to a process status: 2 for bad input, 1 otherwise.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrEmptyFile),
		errors.Is(err, domain.ErrIndexNotFound):
		return 2
	default:
		return 1
	}
}
