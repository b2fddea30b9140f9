package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/timecard/internal/metrics"
	"github.com/hitoshi/timecard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 勤務セッション
	SessionService SessionServiceInterface

	// 旧台帳打刻
	EntryService EntryServiceInterface

	// ユーザー・会社・招待・集計
	UserService    UserServiceInterface
	CompanyService CompanyServiceInterface
	InviteService  InviteServiceInterface
	StatsService   StatsServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → CSRF
//	→（認証ルートのみ）Auth → RateLimit(General)
//
// 認証ルート（/auth/*）、/health、/metricsは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Collector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	sessionHandler := NewSessionHandler(deps.SessionService)
	entryHandler := NewEntryHandler(deps.EntryService)
	userHandler := NewUserHandler(deps.UserService)
	companyHandler := NewCompanyHandler(deps.CompanyService)
	inviteHandler := NewInviteHandler(deps.InviteService)
	statsHandler := NewStatsHandler(deps.StatsService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler)

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/invites/validate", inviteHandler.Validate)
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewAuthMiddleware(deps.UserResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		punchLimit := deps.RateLimiter.PunchMiddleware()

		r.Get("/api/me", authHandler.Me)

		// 勤務セッション管理
		r.Route("/api/sessions", func(r chi.Router) {
			// 打刻系操作には専用レート制限を追加
			r.With(punchLimit).Post("/start", sessionHandler.Start)

			r.Get("/", sessionHandler.List)
			r.Get("/current", sessionHandler.Current)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Patch("/", sessionHandler.Edit)
				r.Delete("/", sessionHandler.Delete)
				r.Get("/history", sessionHandler.History)

				r.With(punchLimit).Post("/stop", sessionHandler.Stop)
				r.With(punchLimit).Post("/breaks/start", sessionHandler.StartBreak)
				r.With(punchLimit).Post("/breaks/end", sessionHandler.EndBreak)
			})
		})

		// 旧台帳打刻管理
		r.Route("/api/entries", func(r chi.Router) {
			r.With(punchLimit).Post("/", entryHandler.Create)

			r.Get("/", entryHandler.List)
			r.Get("/company", entryHandler.ListCompany)
			r.Get("/can-start", entryHandler.CanStart)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", entryHandler.Edit)
				r.Delete("/", entryHandler.Delete)
				r.Get("/history", entryHandler.History)
			})
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.List)
			r.Get("/online", userHandler.Online)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.Get)
				r.Patch("/", userHandler.Update)
				r.Delete("/", userHandler.Delete)
				r.Put("/password", userHandler.ResetPassword)
			})
		})

		// 会社管理
		r.Route("/api/company", func(r chi.Router) {
			r.Get("/", companyHandler.Get)
			r.Patch("/", companyHandler.Update)
		})

		// 招待管理
		r.Route("/api/invites", func(r chi.Router) {
			r.Post("/", inviteHandler.Create)
			r.Get("/", inviteHandler.List)
		})

		// 集計
		r.Get("/api/stats/weekly", statsHandler.Weekly)
	})

	return r
}

// healthHandler はヘルスチェックエンドポイント。
// GET /health
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
