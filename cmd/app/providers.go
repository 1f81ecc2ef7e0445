package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/trip-planner/internal/bootstrap"
	"github.com/yanqian/trip-planner/internal/domain/access"
	"github.com/yanqian/trip-planner/internal/domain/guide"
	"github.com/yanqian/trip-planner/internal/domain/itinerary"
	"github.com/yanqian/trip-planner/internal/domain/planner"
	"github.com/yanqian/trip-planner/internal/infra/archive"
	"github.com/yanqian/trip-planner/internal/infra/config"
	"github.com/yanqian/trip-planner/internal/infra/embedder"
	"github.com/yanqian/trip-planner/internal/infra/guiderepo"
	"github.com/yanqian/trip-planner/internal/infra/llm/chatgpt"
	"github.com/yanqian/trip-planner/internal/infra/llm/fallback"
	"github.com/yanqian/trip-planner/internal/infra/poi"
	"github.com/yanqian/trip-planner/internal/infra/poi/catalog"
	"github.com/yanqian/trip-planner/internal/infra/poi/overpass"
	"github.com/yanqian/trip-planner/internal/infra/poi/poicache"
	"github.com/yanqian/trip-planner/internal/infra/sessionstore"
	"github.com/yanqian/trip-planner/internal/infra/versionrepo"
	"github.com/yanqian/trip-planner/pkg/tokenizer"
)

func providePlannerConfig(cfg *config.Config) (planner.Config, error) {
	loc, err := time.LoadLocation(cfg.Planner.Timezone)
	if err != nil {
		return planner.Config{}, err
	}
	return planner.Config{
		Location:            loc,
		SearchLimit:         cfg.Planner.SearchLimit,
		KeepPOIs:            cfg.Planner.KeepPOIs,
		MaxTravelTimePerDay: cfg.Planner.MaxTravelTimePerDay,
		DefaultDays:         cfg.Planner.DefaultDays,
		SessionTTL:          cfg.Sessions.TTL,
		SummaryTokenBudget:  cfg.Planner.SummaryTokenBudget,
	}, nil
}

func provideInterpreterConfig(cfg *config.Config) planner.InterpreterConfig {
	return planner.InterpreterConfig{
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		IntentPrompt: cfg.Planner.IntentPrompt,
		EditPrompt:   cfg.Planner.EditPrompt,
	}
}

func provideGuideConfig(cfg *config.Config) guide.Config {
	return guide.Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Prompt:      cfg.Guide.Prompt,
		TopK:        cfg.Guide.TopK,
		MinScore:    cfg.Guide.MinScore,
		ChunkTokens: cfg.Guide.ChunkTokens,
	}
}

func provideAccessService(cfg *config.Config) (*access.Service, error) {
	return access.NewService(access.Config{
		Secret:   cfg.Access.Secret,
		TokenTTL: cfg.Access.TokenTTL,
		Issuer:   cfg.Access.Issuer,
	})
}

func provideTokenCounter(logger *slog.Logger) *tokenizer.Counter {
	return tokenizer.New(tokenizer.DefaultEncoding, logger)
}

// provideChatClient returns nil when no backend has credentials; the interpreter then runs on
// rules and the guide answers from retrieval only.
func provideChatClient(cfg *config.Config, logger *slog.Logger) (planner.ChatClient, error) {
	var backends []fallback.Backend
	if strings.TrimSpace(cfg.LLM.APIKey) != "" {
		client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
		if err != nil {
			return nil, err
		}
		backends = append(backends, fallback.Backend{Name: "openai", Client: client})
	}
	for _, fb := range cfg.LLM.Fallbacks {
		client, err := chatgpt.NewClient(fb.APIKey, fb.BaseURL, cfg.LLM.Timeout)
		if err != nil {
			logger.Warn("skipping llm fallback backend", "backend", fb.Name, "error", err)
			continue
		}
		backends = append(backends, fallback.Backend{Name: fb.Name, Client: client, Model: fb.Model})
	}
	if len(backends) == 0 {
		logger.Info("no llm backend configured, using rule-based interpretation")
		return nil, nil
	}
	chain, err := fallback.NewChain(backends, nil, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("llm backends enabled", "count", len(backends))
	return chain, nil
}

func provideEmbedder(cfg *config.Config, logger *slog.Logger) guide.Embedder {
	if cfg.Guide.UseLLMEmbedder && strings.TrimSpace(cfg.LLM.APIKey) != "" {
		client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
		if err == nil {
			logger.Info("llm embedder enabled", "model", cfg.LLM.EmbeddingModel)
			return embedder.NewChatGPTEmbedder(client, cfg.LLM.EmbeddingModel, logger)
		}
		logger.Error("failed to build llm embedder, using hashing embedder", "error", err)
	}
	return embedder.NewHashingEmbedder(cfg.Guide.EmbeddingDim)
}

// providePostgresPool returns nil when postgres is not configured or unreachable.
func providePostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory repositories")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repositories", "error", err)
		return nil
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repositories", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repositories", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("postgres enabled")
	return pool
}

// provideCleanup closes the shared Postgres pool after the server drains.
func provideCleanup(pool *pgxpool.Pool) bootstrap.Cleanup {
	if pool == nil {
		return nil
	}
	return pool.Close
}

func provideVersionRepository(pool *pgxpool.Pool) planner.VersionRepository {
	if pool == nil {
		return versionrepo.NewMemoryRepository()
	}
	return versionrepo.NewPostgresRepository(pool)
}

func provideSnippetRepository(pool *pgxpool.Pool) guide.SnippetRepository {
	if pool == nil {
		return guiderepo.NewMemoryRepository()
	}
	return guiderepo.NewPostgresRepository(pool)
}

func provideSessionStore(cfg *config.Config, logger *slog.Logger) planner.SessionStore {
	if cfg.Sessions.Valkey.Enabled {
		if client, ok := connectValkey(cfg.Sessions.Valkey.Addr, logger); ok {
			logger.Info("valkey session store enabled", "addr", cfg.Sessions.Valkey.Addr)
			return sessionstore.NewValkeyStore(client, cfg.Sessions.Prefix)
		}
	}
	return sessionstore.NewMemoryStore()
}

func providePOISupplier(cfg *config.Config, logger *slog.Logger) itinerary.POISupplier {
	live := overpass.NewClient(overpass.Options{
		Instances:    cfg.POI.OverpassURLs,
		NominatimURL: cfg.POI.NominatimURL,
		UserAgent:    cfg.POI.UserAgent,
		Timeout:      cfg.POI.Timeout,
	}, logger)

	seeded, err := catalog.Load(cfg.POI.CatalogPath)
	if err != nil {
		logger.Error("failed to load poi catalog, continuing without it", "path", cfg.POI.CatalogPath, "error", err)
		seeded, _ = catalog.New(nil)
	} else {
		logger.Info("poi catalog loaded", "cities", seeded.Cities())
	}
	chain := poi.NewChain(live, seeded, cfg.POI.MinResults, logger)

	if cfg.POI.CacheTTL <= 0 {
		return chain
	}
	var store poicache.Store = poicache.NewMemoryStore()
	if cfg.POI.Valkey.Enabled {
		if client, ok := connectValkey(cfg.POI.Valkey.Addr, logger); ok {
			logger.Info("valkey poi cache enabled", "addr", cfg.POI.Valkey.Addr)
			store = poicache.NewValkeyStore(client, cfg.Sessions.Prefix)
		}
	}
	return poicache.New(chain, store, cfg.POI.CacheTTL, logger)
}

func provideArchive(cfg *config.Config, logger *slog.Logger) planner.Archive {
	if !cfg.Archive.Enabled {
		return archive.Noop{}
	}
	store, err := archive.NewMinioArchive(archive.Options{
		Endpoint:  cfg.Archive.Endpoint,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		Region:    cfg.Archive.Region,
		UseSSL:    cfg.Archive.UseSSL,
	}, logger)
	if err != nil {
		logger.Error("failed to create snapshot archive, keeping snapshots in memory", "error", err)
		return archive.NewMemoryArchive()
	}
	logger.Info("snapshot archive enabled", "bucket", cfg.Archive.Bucket)
	return store
}

// provideGuideService builds the guide and loads the seed corpus into its repository.
func provideGuideService(cfg *config.Config, gcfg guide.Config, repo guide.SnippetRepository, emb guide.Embedder, counter *tokenizer.Counter, chat planner.ChatClient, logger *slog.Logger) guide.Service {
	svc := guide.NewService(gcfg, repo, emb, counter, chat, logger)

	path := strings.TrimSpace(cfg.Guide.SeedPath)
	if path == "" {
		return svc
	}
	docs, err := guiderepo.LoadSeed(path)
	if err != nil {
		logger.Error("failed to load guide seed", "path", path, "error", err)
		return svc
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	total := 0
	for _, doc := range docs {
		n, err := svc.Ingest(ctx, doc)
		if err != nil {
			logger.Warn("guide seed document skipped", "source", doc.Source, "section", doc.Section, "error", err)
			continue
		}
		total += n
	}
	logger.Info("guide seed ingested", "documents", len(docs), "snippets", total)
	return svc
}

func providePlannerDeps(
	store planner.SessionStore,
	versions planner.VersionRepository,
	arch planner.Archive,
	supplier itinerary.POISupplier,
	interp *planner.Interpreter,
	tokens *access.Service,
	guideSvc guide.Service,
	counter *tokenizer.Counter,
) planner.Deps {
	return planner.Deps{
		Store:       store,
		Versions:    versions,
		Archive:     arch,
		Supplier:    supplier,
		Estimator:   itinerary.NewGreatCircleEstimator(),
		Interpreter: interp,
		Tokens:      tokens,
		Guide:       guideSvc,
		Counter:     counter,
	}
}

func connectValkey(addr string, logger *slog.Logger) (valkey.Client, bool) {
	opt, err := buildValkeyOptions(addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory", "error", err)
		return nil, false
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory", "error", err)
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory", "addr", addr, "error", err)
		client.Close()
		return nil, false
	}
	return client, true
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}
