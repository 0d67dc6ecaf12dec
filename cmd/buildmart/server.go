package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/access"
	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/cart"
	"github.com/MikeMC777/buildmart/internal/config"
	"github.com/MikeMC777/buildmart/internal/db"
	"github.com/MikeMC777/buildmart/internal/httpx"
	"github.com/MikeMC777/buildmart/internal/order"
	"github.com/MikeMC777/buildmart/internal/product"
	"github.com/MikeMC777/buildmart/internal/project"
	"github.com/MikeMC777/buildmart/internal/stats"
	"github.com/MikeMC777/buildmart/internal/storage"
	"github.com/MikeMC777/buildmart/internal/user"
)

func serveCmd(c *cli.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	cfg.Log(log)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.PostgresDSN, false); err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	var cache product.ListCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// the catalog works without cache
			log.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			cache = product.NewRedisCache(rdb, cfg.CatalogCacheTTL, log)
		}
	}

	store, uploadDir, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	gate := access.NewGate(access.DefaultPolicy())
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)

	productRepo := product.NewPGRepo(pool)
	cartRepo := cart.NewPGRepo(pool)
	svcs := services{
		products:       product.NewService(productRepo, gate, cache, log),
		carts:          cart.NewService(cartRepo, productRepo, gate),
		orders:         order.NewService(order.NewPGRepo(pool), productRepo, cartRepo, gate, log),
		projects:       project.NewService(project.NewPGRepo(pool), store, gate, log),
		users:          user.NewService(user.NewPGRepo(pool), tokens, gate, log),
		stats:          stats.NewService(stats.NewPGSource(pool), gate),
		tokens:         tokens,
		loginLimiter:   httpx.NewIPRateLimiter(cfg.LoginRatePerMin),
		trustedProxies: cfg.TrustedProxies,
		uploadDir:      uploadDir,
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.CORS(newRouter(svcs, log), cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	log.Info("server stopped")
	return nil
}

// newStore picks S3 when a bucket is configured, local disk otherwise. The
// returned directory is non-empty only for local storage.
func newStore(ctx context.Context, cfg config.Config, log *zap.Logger) (storage.Store, string, error) {
	if cfg.S3Bucket == "" {
		return storage.NewLocal(cfg.UploadDir, "/uploads"), cfg.UploadDir, nil
	}
	s3, err := storage.NewS3(ctx, storage.S3Options{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	}, log)
	if err != nil {
		return nil, "", err
	}
	return s3, "", nil
}
