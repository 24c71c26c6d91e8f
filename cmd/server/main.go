package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"batepapo/internal/config"
	"batepapo/internal/directory"
	"batepapo/internal/gateway"
	"batepapo/internal/handler"
	"batepapo/internal/logger"
	"batepapo/internal/messagelog"
	"batepapo/internal/reaper"
	"batepapo/internal/store"
	"batepapo/internal/store/badgerstore"
	"batepapo/internal/store/memstore"
	"batepapo/internal/store/mysqlstore"
	"batepapo/internal/store/redisstore"
)

func main() {
	// .envファイルを読み込み
	envErr := godotenv.Load()

	// 環境変数を読み込み
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, ServiceName: "batepapo"})
	log := logger.L()
	if envErr != nil {
		log.Warn().Err(envErr).Msg(".env file not found, using environment and defaults")
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}

	// ストア接続を初期化
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStore(startCtx, cfg)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to initialize store")
	}

	dir := directory.New(st, nil)
	msgLog := messagelog.New(st, nil)
	gw := gateway.New(dir, msgLog, cfg.StoreTimeout, nil)

	// 在室管理（タイムアウトした参加者の退出処理）を開始
	rp := reaper.New(dir, msgLog, reaper.Config{
		Interval:     cfg.SweepInterval,
		StaleAfter:   cfg.StaleAfter,
		StoreTimeout: cfg.StoreTimeout,
	}, log.With().Str("component", "reaper").Logger(), nil)
	if err := rp.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to start presence reaper")
	}

	// ハンドラー初期化
	h := handler.New(gw)
	router := h.SetupRouter()

	// CORS対応
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "User", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "X-Request-ID"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           c.Handler(logger.HTTPMiddleware(log)(router)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Println("========================================")
	fmt.Println("  Bate-papo API Server")
	fmt.Println("========================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Server: http://localhost:%s\n", cfg.ServerPort)
	fmt.Printf("  Store: %s\n", describeStore(cfg))
	fmt.Printf("  Presence: sweep every %s, stale after %s\n", cfg.SweepInterval, cfg.StaleAfter)
	fmt.Printf("  Allowed Origins: %v\n", cfg.AllowedOrigins)
	fmt.Println("========================================")

	go func() {
		log.Info().Str("addr", server.Addr).Msg("🚀 server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// HTTPを止めてから在室管理を止め、最後にストアを閉じる
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"batepapo": func(ctx context.Context) error {
				log.Info().Msg("graceful shutdown initiated")
				return errors.Join(
					server.Shutdown(ctx),
					rp.Stop(ctx),
					st.Close(),
				)
			},
		},
	)

	exitCode := <-wait
	log.Info().Int("exit_code", exitCode).Msg("server stopped")
	os.Exit(exitCode)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		s, err := mysqlstore.Open(ctx, mysqlstore.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Name:     cfg.DBName,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case config.DriverBadger:
		return badgerstore.Open(cfg.BadgerPath)
	case config.DriverRedis:
		return redisstore.Open(ctx, redisstore.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return memstore.New(), nil
	}
}

func describeStore(cfg config.Config) string {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		return fmt.Sprintf("mysql %s@%s:%s/%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	case config.DriverBadger:
		if cfg.BadgerPath == "" {
			return "badger (in-memory)"
		}
		return "badger " + cfg.BadgerPath
	case config.DriverRedis:
		return fmt.Sprintf("redis %s/%d", cfg.RedisAddress, cfg.RedisDB)
	default:
		return "memory"
	}
}
