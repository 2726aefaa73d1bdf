package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sharebnb/internal/metrics"
	"github.com/hitoshi/sharebnb/internal/middleware"
	"github.com/hitoshi/sharebnb/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.TokenAuthenticator
	CORSAllowedOrigin string
	Logger            *slog.Logger
	HTTPRecorder      middleware.HTTPRecorder

	// 運用エンドポイント
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	AuthService    AuthServiceInterface
	UserService    UserServiceInterface
	ListingService ListingServiceInterface
	BookingService BookingServiceInterface
	MessageService MessageServiceInterface

	// MaxImageBytes は画像1枚あたりの上限サイズ。
	MaxImageBytes int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → CORS → SecurityHeaders → (Auth)
//
// 認証が必要なルートのみAuthミドルウェアを通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPRecorder))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{Code: "NOT_FOUND", Message: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, &model.APIError{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"})
	})

	requireAuth := middleware.NewAuthMiddleware(deps.Authenticator)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.Authenticator)

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	listingHandler := NewListingHandler(deps.ListingService, deps.MaxImageBytes)
	bookingHandler := NewBookingHandler(deps.BookingService)
	messageHandler := NewMessageHandler(deps.MessageService)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証不要のルート ---
	r.Post("/signup", authHandler.Signup)
	r.Post("/login", authHandler.Login)
	r.Get("/users", userHandler.List)
	r.With(optionalAuth).Get("/users/{username}", userHandler.Get)
	r.Get("/listings", listingHandler.Search)
	r.Get("/listings/{id}", listingHandler.Get)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/logout", authHandler.Logout)

		r.Patch("/users/me", userHandler.UpdateProfile)
		r.Delete("/users/me", userHandler.Withdraw)
		r.Get("/users/{username}/messages", messageHandler.ListForUser)

		r.Post("/listings", listingHandler.Create)
		r.Patch("/listings/{id}", listingHandler.Update)
		r.Delete("/listings/{id}", listingHandler.Delete)
		r.Post("/listings/{id}/images", listingHandler.AddImages)
		r.Get("/listings/{id}/bookings", bookingHandler.ListForListing)
		r.Get("/listings/{id}/messages", messageHandler.ListForListing)
		r.Post("/listings/{id}/messages", messageHandler.Send)

		r.Get("/bookings", bookingHandler.ListMine)
		r.Post("/bookings", bookingHandler.Create)
		r.Get("/bookings/{id}", bookingHandler.Get)
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

// healthHandler はDBへの疎通を確認する。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
