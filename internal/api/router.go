package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/blablabla-ai/blablabla/internal/analysis"
	"github.com/blablabla-ai/blablabla/internal/api/handlers"
	"github.com/blablabla-ai/blablabla/internal/api/middleware"
	"github.com/blablabla-ai/blablabla/internal/auth"
	"github.com/blablabla-ai/blablabla/internal/cache"
	"github.com/blablabla-ai/blablabla/internal/config"
	"github.com/blablabla-ai/blablabla/internal/history"
	"github.com/blablabla-ai/blablabla/internal/llm"
	"github.com/blablabla-ai/blablabla/internal/queue"
	"github.com/blablabla-ai/blablabla/internal/quota"
	"github.com/blablabla-ai/blablabla/internal/storage"
	"github.com/blablabla-ai/blablabla/internal/stt"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	store := history.NewStore(rt.db)

	var countCache quota.CountCache
	if rt.redis != nil {
		countCache = cache.NewCache(rt.redis)
	}
	limiter := quota.NewLimiter(store, countCache, rt.cfg.Quota.PerHour)

	transcriber := stt.NewOpenAISTT(stt.OpenAIConfig{
		APIKey: rt.cfg.Analysis.OpenAIKey,
		Model:  rt.cfg.Analysis.TranscribeModel,
	})
	gateway := llm.NewGateway(rt.cfg.Analysis)
	analyzer := analysis.NewService(transcriber, gateway, rt.cfg.Analysis)

	var audioStore storage.Storage
	var purger handlers.Purger
	if rt.cfg.Storage.SupabaseURL != "" {
		audioStore = storage.NewSupabaseStorage(rt.cfg.Storage.SupabaseURL, rt.cfg.Storage.SupabaseKey)
		purger = queue.NewClient(rt.cfg.Redis)
	}

	jwt := auth.NewJWTMiddleware(rt.cfg.Auth.JWTSecret, store)

	analyzeH := handlers.NewAnalyzeHandler(
		analyzer, limiter, store, audioStore, purger,
		rt.cfg.Storage.Bucket, rt.cfg.Analysis.MaxUploadBytes,
		time.Duration(rt.cfg.Storage.RetentionHours)*time.Hour,
	)

	// The analysis endpoint sits at the root, not under /api/v1; preflight
	// OPTIONS terminates in the CORS middleware.
	r.Group(func(r chi.Router) {
		r.Use(jwt.Authenticate)
		r.Post("/analyze-audio", analyzeH.Analyze)
	})

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jwt.Authenticate)

		recH := handlers.NewRecordingsHandler(store, purger)
		r.Route("/recordings", func(r chi.Router) {
			r.Get("/", recH.List)
			r.Get("/{id}", recH.Get)
			r.Delete("/{id}", recH.Delete)
		})
	})

	return r
}
