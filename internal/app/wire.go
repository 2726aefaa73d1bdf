package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sharebnb/internal/auth"
	"github.com/hitoshi/sharebnb/internal/booking"
	"github.com/hitoshi/sharebnb/internal/config"
	"github.com/hitoshi/sharebnb/internal/events"
	"github.com/hitoshi/sharebnb/internal/handler"
	"github.com/hitoshi/sharebnb/internal/image"
	"github.com/hitoshi/sharebnb/internal/listing"
	"github.com/hitoshi/sharebnb/internal/message"
	"github.com/hitoshi/sharebnb/internal/metrics"
	"github.com/hitoshi/sharebnb/internal/repository"
	"github.com/hitoshi/sharebnb/internal/security"
	"github.com/hitoshi/sharebnb/internal/storage"
	"github.com/hitoshi/sharebnb/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// apiServer はワイヤリング済みのHTTPハンドラーと、終了時に閉じる外部接続を保持する。
type apiServer struct {
	handler http.Handler
	closers []func() error
}

func (s *apiServer) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("外部接続のクローズに失敗しました", slog.String("error", err.Error()))
		}
	}
}

// wire は設定に従ってリポジトリ、サービス、ハンドラーを組み立てる。
// REDIS_URL、AMQP_URL、BUCKETが未設定の場合は対応する機能を無効にして起動する。
func wire(ctx context.Context, cfg *config.Config, db *sql.DB) (*apiServer, error) {
	srv := &apiServer{}
	fail := func(err error) (*apiServer, error) {
		srv.close()
		return nil, err
	}

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	listingRepo := repository.NewPostgresListingRepo(db)
	imageRepo := repository.NewPostgresImageRepo(db)
	bookingRepo := repository.NewPostgresBookingRepo(db)
	messageRepo := repository.NewPostgresMessageRepo(db)

	// 3. 認証
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.SecretKey,
		TTL:    cfg.TokenTTL,
		Issuer: cfg.TokenIssuer,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create token service: %w", err))
	}
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	var denylist auth.Denylist
	if cfg.RedisURL != "" {
		client, err := auth.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		srv.closers = append(srv.closers, client.Close)
		denylist = auth.NewRedisDenylist(client)
		slog.Info("トークン失効リストを有効化しました")
	}
	authService := auth.NewService(userRepo, hasher, tokens, denylist, collector)

	// 4. ドメインイベント
	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, collector)
		if err != nil {
			return fail(err)
		}
		srv.closers = append(srv.closers, amqpPublisher.Close)
		publisher = amqpPublisher
		slog.Info("ドメインイベントの発行を有効化しました", slog.String("exchange", cfg.AMQPExchange))
	}

	// 5. 画像ストレージ
	var store image.ObjectStore
	if cfg.UploadsEnabled() {
		s3Store, err := storage.NewS3Store(ctx, storage.Config{
			Bucket:        cfg.Bucket,
			Region:        cfg.AWSRegion,
			AccessKey:     cfg.AccessKey,
			SecretKey:     cfg.AccessSecretKey,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return fail(err)
		}
		store = s3Store
	} else {
		slog.Warn("BUCKETが未設定のため画像アップロードは無効です")
	}
	pipeline := image.NewPipeline(store, security.NewURLGuard(), image.Config{
		MaxBytes:     cfg.ImageMaxBytes,
		FetchTimeout: cfg.ImageFetchTimeout,
	}, collector)

	// 6. ドメインサービス
	sanitizer := security.NewTextSanitizer()
	listingService := listing.NewService(listingRepo, imageRepo, pipeline, sanitizer)
	bookingService := booking.NewService(bookingRepo, listingRepo, publisher)
	messageService := message.NewService(messageRepo, listingRepo, userRepo, sanitizer, publisher)
	userService := user.NewService(userRepo, listingRepo, bookingRepo, imageRepo, pipeline, hasher, authService)

	// 7. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		HTTPRecorder:      collector,
		HealthChecker:     db,
		Gatherer:          reg,

		AuthService:    authService,
		UserService:    userService,
		ListingService: listingService,
		BookingService: bookingService,
		MessageService: messageService,

		MaxImageBytes: cfg.ImageMaxBytes,
	})

	srv.handler = otelhttp.NewHandler(router, "sharebnb.http")
	return srv, nil
}
