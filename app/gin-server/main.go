package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/auxilium/config"
	"github.com/yoockh/auxilium/internal/api/handlers"
	"github.com/yoockh/auxilium/internal/api/middleware"
	"github.com/yoockh/auxilium/internal/api/routes"
	"github.com/yoockh/auxilium/internal/cache"
	"github.com/yoockh/auxilium/internal/logger"
	"github.com/yoockh/auxilium/internal/providers/llm"
	mongorepo "github.com/yoockh/auxilium/internal/repositories/mongo"
	pgrepo "github.com/yoockh/auxilium/internal/repositories/postgres"
	"github.com/yoockh/auxilium/internal/services"
)

func main() {
	cfg, err := config.Load()
	log := logger.New(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	db, err := config.NewPostgres(cfg.PostgresURI)
	if err != nil {
		log.WithError(err).Fatal("postgres init")
	}
	if cfg.AutoMigrate {
		if err := pgrepo.Migrate(db); err != nil {
			log.WithError(err).Fatal("postgres migrate")
		}
	}
	log.Info("postgres connected")

	// Redis (optional)
	var convCache cache.ConversationCache = cache.Nop{}
	rdb, err := config.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.WithError(err).Fatal("redis init")
	}
	if rdb != nil {
		defer rdb.Close()
		convCache = cache.NewRedisCache(rdb, cfg.CacheTTL)
		log.Info("redis connected")
	}

	// MongoDB (optional)
	var events mongorepo.RelayEventRepository
	mc, err := config.NewMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.WithError(err).Fatal("mongo init")
	}
	if mc != nil {
		defer func() { _ = mc.Disconnect(context.Background()) }()
		mdb := mc.Database(cfg.MongoDB)
		if err := config.EnsureJournalIndexes(ctx, mdb); err != nil {
			log.WithError(err).Warn("mongo indexes")
		}
		events = mongorepo.NewRelayEventRepo(mdb)
		log.Info("mongo connected")
	}

	// Providers
	completion, err := llm.New(ctx, cfg.CompletionProvider)
	if err != nil {
		log.WithError(err).Fatal("completion provider")
	}
	defer completion.Close()
	chat, err := llm.New(ctx, cfg.ChatProvider)
	if err != nil {
		log.WithError(err).Fatal("chat provider")
	}
	defer chat.Close()
	log.WithFields(logrus.Fields{
		"completion": completion.Name() + "/" + completion.Model(),
		"chat":       chat.Name() + "/" + chat.Model(),
	}).Info("providers ready")

	// Services
	convSvc := services.NewConversationService(pgrepo.NewConversationRepo(db), convCache)
	userSvc := services.NewUserService(pgrepo.NewUserRepo(db))
	journal := services.NewJournalService(events, cfg.JournalTTL)

	// Handlers
	auth, err := middleware.JWTAuth(cfg.Auth)
	if err != nil {
		log.WithError(err).Fatal("jwt config")
	}
	webhook, err := handlers.NewWebhookHandler(cfg.WebhookSecret, userSvc, log)
	if err != nil {
		log.WithError(err).Fatal("webhook config")
	}

	gin.SetMode(gin.ReleaseMode)
	r := routes.NewEngine(log, routes.Deps{
		Auth:         auth,
		Completion:   handlers.NewCompletionHandler(completion, chat, cfg.SystemPrompt, journal, log),
		Conversation: handlers.NewConversationHandler(convSvc, journal),
		Webhook:      webhook,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
