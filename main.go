package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/docuchain/docuchain-backend/handlers"
	"github.com/docuchain/docuchain-backend/internal/blobstore"
	"github.com/docuchain/docuchain-backend/internal/config"
	"github.com/docuchain/docuchain-backend/internal/database"
	dochandler "github.com/docuchain/docuchain-backend/internal/document/handler"
	"github.com/docuchain/docuchain-backend/internal/document/repository"
	"github.com/docuchain/docuchain-backend/internal/document/service"
	"github.com/docuchain/docuchain-backend/internal/ledger"
	"github.com/docuchain/docuchain-backend/internal/sessions"
	"github.com/docuchain/docuchain-backend/internal/tokens"
	"github.com/docuchain/docuchain-backend/internal/users"
	"github.com/docuchain/docuchain-backend/internal/wallet"
	"github.com/docuchain/docuchain-backend/pkg/logger"
	"github.com/docuchain/docuchain-backend/pkg/metrics"
	"github.com/docuchain/docuchain-backend/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging level is controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v ledger=%v ipfs=%v",
		cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.LedgerConfigured(), cfg.BlobConfigured())

	if !cfg.IsDevelopmentEnv() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple; production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})
	r.Use(middleware.RequestID())
	r.Use(gin.Logger(), gin.Recovery())

	// Connect to Redis early so the rate limiter and token blacklist can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err == nil {
			sessions.SetBlacklistClient(redisClient)
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		} else {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// MongoDB with retry/backoff to tolerate startup races
	ctx := context.Background()
	const maxAttempts = 5
	backoff := time.Second
	var client *mongo.Client
	var errConn error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if errConn == nil {
			break
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if errConn != nil {
		logger.Fatalf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
	}
	defer func() { _ = client.Disconnect(ctx) }()

	db := client.Database(cfg.MongoDB.Database)
	userRepo := users.NewMongoUserRepository(db.Collection("users"))
	docRepo := repository.NewMongoRepo(db.Collection("documents"))

	deriver, err := wallet.NewDeriver(cfg.Wallet.MasterSecret, cfg.Wallet.CacheSize, cfg.Wallet.CacheTTL)
	if err != nil {
		logger.Fatalf("wallet deriver: %v", err)
	}

	// Adapter selection: real backends when fully configured, simulations
	// otherwise. Either simulation switches the service into development
	// mode.
	var led ledger.Ledger
	if cfg.LedgerConfigured() {
		led, err = ledger.NewEVMLedger(cfg.Ledger.RPCURL, cfg.Ledger.ContractAddress, cfg.Ledger.OperatorKey, cfg.Ledger.ChainID, deriver)
		if err != nil {
			logger.Fatalf("ledger adapter: %v", err)
		}
		logger.Infof("access ledger: chain-backed via %s (chain id %d)", cfg.Ledger.RPCURL, cfg.Ledger.ChainID)
	} else {
		led = ledger.NewMemLedger(deriver)
		logger.Warnf("access ledger: credentials missing, using in-memory simulation")
	}

	var blob blobstore.Store
	if cfg.BlobConfigured() {
		blob, err = blobstore.NewIPFSStore(cfg.BlobStore.APIURL, cfg.BlobStore.ProjectID, cfg.BlobStore.ProjectSecret)
		if err != nil {
			logger.Fatalf("blob store adapter: %v", err)
		}
		logger.Infof("blob store: IPFS via %s", cfg.BlobStore.APIURL)
	} else {
		blob, err = blobstore.NewLocalStore(cfg.BlobStore.LocalDir)
		if err != nil {
			logger.Fatalf("blob store adapter: %v", err)
		}
		logger.Warnf("blob store: IPFS credentials missing, using local directory %s", cfg.BlobStore.LocalDir)
	}

	devMode := cfg.DevelopmentMode()
	if devMode {
		logger.Warnf("development mode: ledger failures on grants degrade to record-store-only writes")
	}

	userSvc := users.NewService(userRepo)
	docSvc := service.New(docRepo, userRepo, blob, led, deriver, devMode)

	public := r.Group("/api")
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(func(raw string) (map[string]interface{}, error) {
		return tokens.ParseAccessToken(cfg, raw)
	}))

	handlers.NewAuthHandler(cfg, userSvc).Register(public, protected)
	dochandler.NewDocumentHandler(docSvc, cfg).Register(protected)
	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the record store answers; adapter wiring is
	// reported so operators can see which mode the service runs in
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := gin.H{
			"ledger":    led.Name(),
			"blobstore": blob.Name(),
			"devMode":   devMode,
		}
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			deps["mongodb"] = false
			ready = false
		} else {
			deps["mongodb"] = true
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil
		}
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting docuchain backend on %s (env=%s)", addr, cfg.Server.Environment)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server failed: %v", err)
	}
}
