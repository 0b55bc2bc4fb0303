package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/redis/go-redis/v9"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/database"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/messaging"
	natsclient "github.com/PhilipLykov/SyslogCollectorAI-sub000/common/messaging/nats"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/audit"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/cache"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/config"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/eventsource"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/lifecycle"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/repository"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/scoring"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/service"
)

// app holds the wired components shared by the subcommands.
type app struct {
	pool         *pgxpool.Pool
	redis        *redis.Client
	publisher    messaging.Publisher
	repo         *repository.PostgresRepository
	recalculator *scoring.Recalculator
	recorder     *audit.Recorder
	coordinator  *service.Coordinator
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{publisher: messaging.NopPublisher{}}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	a.pool = pool
	a.repo = repository.NewPostgresRepository(pool)
	slog.Info("Connected to PostgreSQL")

	var osClient *opensearch.Client
	if cfg.OpenSearch.URL != "" {
		osClient, err = eventsource.NewOpenSearchClient(ctx, eventsource.ClusterConfig{
			URL:      cfg.OpenSearch.URL,
			Username: cfg.OpenSearch.Username,
			Password: cfg.OpenSearch.Password,
			Insecure: cfg.OpenSearch.Insecure,
			Timeout:  cfg.OpenSearch.Timeout,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to OpenSearch: %w", err)
		}
		slog.Info("Connected to OpenSearch", slog.String("url", cfg.OpenSearch.URL))
	} else {
		slog.Warn("OpenSearch not configured, external-search-backed systems are unavailable")
	}

	var windowDays scoring.WindowDaysSource = a.repo
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Warn("Redis unavailable, reading app config from PostgreSQL",
				slog.String("addr", cfg.Redis.Addr), logging.Error(err))
		} else {
			a.redis = client
			windowDays = cache.NewAppConfigCache(client, a.repo, cfg.RedisTTL())
		}
	}

	if cfg.NATS.Enabled {
		nc, err := natsclient.NewClient(natsclient.Config{
			URL:           cfg.NATS.URL,
			Name:          "events-service",
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATSReconnectWait(),
			Timeout:       5 * time.Second,
		})
		if err != nil {
			slog.Warn("NATS unavailable, notifications disabled",
				slog.String("url", cfg.NATS.URL), logging.Error(err))
		} else {
			a.publisher = nc
		}
	}

	sampleSize := cfg.Acknowledge.MessageSampleSize
	meta := eventsource.NewPgMetadataStore(pool, cfg.Scoring.DeleteChunkSize)
	native := eventsource.NewPgEventSource(pool, sampleSize)

	esOpts := eventsource.DefaultEsOptions()
	if cfg.OpenSearch.PageSize > 0 {
		esOpts.PageSize = cfg.OpenSearch.PageSize
	}
	if cfg.OpenSearch.MaxScan > 0 {
		esOpts.MaxScan = cfg.OpenSearch.MaxScan
	}
	if sampleSize > 0 {
		esOpts.SampleLimit = sampleSize
	}
	resolver := eventsource.NewResolver(a.repo, native, osClient, meta, esOpts)

	a.recalculator = scoring.NewRecalculator(a.repo, windowDays, scoring.Options{
		MetaWeight:        cfg.Scoring.MetaWeight,
		DefaultWindowDays: cfg.Scoring.DefaultWindowDays,
		MaxWindowDays:     cfg.Scoring.MaxWindowDays,
	})
	transitioner := lifecycle.NewTransitioner(a.repo, lifecycle.Matcher{
		Threshold:     cfg.Lifecycle.MatchThreshold,
		MinWordLength: cfg.Lifecycle.MinWordLength,
	})
	a.recorder = audit.NewRecorder(a.repo, a.publisher, cfg.NATS.AuditSubject)

	a.coordinator = service.NewCoordinator(resolver, a.repo, a.recalculator, transitioner, service.Options{
		DeleteChunkSize:   cfg.Scoring.DeleteChunkSize,
		MessageSampleSize: sampleSize,
		ByIDsMax:          cfg.Acknowledge.ByIDsMax,
	}).WithAudit(a.recorder).WithPublisher(a.publisher)

	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	if a.recorder != nil {
		a.recorder.Wait()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			slog.Warn("Failed to close NATS connection", logging.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("Failed to close Redis client", logging.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
