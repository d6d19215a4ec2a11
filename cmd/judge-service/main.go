package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"efrog/internal/common/cache"
	"efrog/internal/common/db"
	"efrog/internal/common/httpmw"
	"efrog/internal/common/mq"
	"efrog/internal/common/storage"
	contestcontroller "efrog/internal/contest/controller"
	contestrepo "efrog/internal/contest/repository"
	contestservice "efrog/internal/contest/service"
	"efrog/internal/judge/admission"
	judgecontroller "efrog/internal/judge/controller"
	"efrog/internal/judge/engine"
	"efrog/internal/judge/realtime"
	judgerepo "efrog/internal/judge/repository"
	judgeservice "efrog/internal/judge/service"
	"efrog/internal/judge/testdata"
	problemrepo "efrog/internal/problem/repository"
	submitcontroller "efrog/internal/submit/controller"
	submitrepo "efrog/internal/submit/repository"
	submitservice "efrog/internal/submit/service"
	"efrog/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		logger.Error(context.Background(), "init minio failed", zap.Error(err))
		return
	}

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka)
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	engineClient, err := engine.NewClient(appCfg.Engine)
	if err != nil {
		logger.Error(context.Background(), "init engine client failed", zap.Error(err))
		return
	}

	statusRepo := judgerepo.NewStatusRepository(redisCache, appCfg.Status.TTL)
	eventPublisher := judgerepo.NewMQEventPublisher(mqClient, appCfg.Status.FinalTopic)
	resultRepo := judgerepo.NewResultRepository(mysqlDB)
	problemRepo := problemrepo.NewProblemRepository(mysqlDB)
	packCache := testdata.NewPackCache(appCfg.PackCache, objStorage, redisCache)
	hub := realtime.NewHub()

	judgeSvc, err := judgeservice.NewService(judgeservice.Config{
		Engine:             engineClient,
		Gate:               admission.NewGate(),
		Hub:                hub,
		Problems:           problemRepo,
		Packs:              packCache,
		Results:            resultRepo,
		StatusRepo:         statusRepo,
		Events:             eventPublisher,
		JudgePool:          appCfg.JudgePool,
		DebugPool:          appCfg.DebugPool,
		MaxDebugInputs:     appCfg.Debug.MaxInputs,
		MaxDebugInputBytes: appCfg.Debug.MaxInputBytes,
	})
	if err != nil {
		logger.Error(context.Background(), "init judge service failed", zap.Error(err))
		return
	}

	contestRepo := contestrepo.NewContestRepository(mysqlDB, redisCache)
	contestSvc, err := contestservice.NewContestService(contestRepo)
	if err != nil {
		logger.Error(context.Background(), "init contest service failed", zap.Error(err))
		return
	}

	submissionRepo := submitrepo.NewSubmissionRepository(mysqlDB, redisCache)
	rateLimit, timeouts := appCfg.Submit.toServiceOptions()
	submitSvc, err := submitservice.NewSubmitService(submitservice.Config{
		SubmissionRepo:  submissionRepo,
		Results:         resultRepo,
		StatusRepo:      statusRepo,
		Judge:           judgeSvc,
		Storage:         objStorage,
		Cache:           redisCache,
		Contests:        contestSvc,
		SourceBucket:    appCfg.MinIO.SourceBucket,
		SourceKeyPrefix: appCfg.Submit.SourceKeyPrefix,
		Languages:       appCfg.Submit.Languages,
		MaxCodeBytes:    appCfg.Submit.MaxCodeBytes,
		IdempotencyTTL:  appCfg.Submit.IdempotencyTTL,
		RateLimit:       rateLimit,
		Timeouts:        timeouts,
		RealtimePath:    appCfg.Submit.RealtimePath,
	})
	if err != nil {
		logger.Error(context.Background(), "init submit service failed", zap.Error(err))
		return
	}

	httpServer := buildHTTPServer(appCfg, submitSvc, judgeSvc, contestSvc, hub)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	if err := judgeSvc.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "judge service shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg *AppConfig, submitSvc *submitservice.SubmitService, judgeSvc *judgeservice.Service, contestSvc *contestservice.ContestService, hub *realtime.Hub) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.TraceMiddleware())
	router.Use(httpmw.CORSMiddleware(cfg.CORS))
	router.Use(requestLogger())

	submitCtrl := submitcontroller.NewSubmitController(submitSvc)
	judgeCtrl := judgecontroller.NewJudgeController(judgeSvc)
	realtimeCtrl := judgecontroller.NewRealtimeController(hub)
	contestCtrl := contestcontroller.NewContestController(contestSvc)

	api := router.Group("/api/v1")
	api.GET("/contests/:id/scoreboard", contestCtrl.GetScoreboard)
	// Browsers cannot set headers on websocket dials, so the live
	// channel is addressed by submission ID instead of a token.
	api.GET("/submissions/:id/live", realtimeCtrl.Attach)

	authed := api.Group("")
	authed.Use(httpmw.AuthMiddleware(cfg.JWT))
	authed.POST("/submissions", submitCtrl.Create)
	authed.GET("/submissions/:id", submitCtrl.GetResult)
	authed.GET("/submissions/:id/source", submitCtrl.GetSource)
	authed.POST("/debug", judgeCtrl.Debug)
	authed.GET("/judging", judgeCtrl.Diagnostics)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
