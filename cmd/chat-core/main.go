package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/opendesk/chat-core/config"
	"github.com/opendesk/chat-core/internal/broker"
	"github.com/opendesk/chat-core/internal/cache"
	"github.com/opendesk/chat-core/internal/directory"
	"github.com/opendesk/chat-core/internal/metrics"
	"github.com/opendesk/chat-core/internal/middleware"
	"github.com/opendesk/chat-core/internal/repository"
	"github.com/opendesk/chat-core/internal/routes"
	"github.com/opendesk/chat-core/internal/service"
	"github.com/opendesk/chat-core/internal/ws"
)

// Server holds service dependencies
type Server struct {
	Cfg       *config.Config
	App       *fiber.App
	DB        *gorm.DB
	Cache     *cache.Cache
	PubSub    broker.PubSub
	KafkaProd *broker.Producer
	KafkaCons *broker.Consumer
	Hub       *ws.Hub

	Convs    *service.ConversationService
	Messages *service.MessageService
	Presence *service.PresenceService
	Resolver *service.Resolver

	Ctx    context.Context
	Cancel context.CancelFunc
}

// NewServer builds the server and all dependencies. Errors if a required dependency fails.
func NewServer(cfg *config.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	nodeID := uuid.New().String()

	db, err := repository.Open(cfg.MySQLDSN)
	if err != nil {
		cancel()
		return nil, err
	}

	cacheClient, err := cache.New(cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPwd,
		DB:       cfg.RedisDB,
		Prefix:   cfg.CachePrefix,
		TTL:      cfg.CacheTTL,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	pubsub, err := broker.NewRedisPubSub(cfg.RedisAddr, cfg.RedisPwd, cfg.RedisDB)
	if err != nil {
		cancel()
		return nil, err
	}

	var producer *broker.Producer
	var consumer *broker.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		producer = broker.NewProducer(cfg.KafkaBrokers, cfg.KafkaMessageTopic)
		consumer = broker.NewConsumer(cfg.KafkaBrokers, cfg.KafkaMessageTopic, "chat-core-"+nodeID)
	} else {
		log.Warn().Msg("kafka not configured, message fan-out is process-local only")
	}

	users := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	dir := directory.NewClient(cfg.DirectoryBaseURL, cfg.DirectoryTimeout)
	resolver := service.NewResolver(users, dir, cacheClient)
	convs := service.NewConversationService(convRepo, resolver, cacheClient)
	presence := service.NewPresenceService(users, pubsub, cfg.CachePrefix)
	hub := ws.NewHub(presence, convs, nodeID)

	var publisher service.EventPublisher
	if producer != nil {
		publisher = producer
	}
	messages := service.NewMessageService(msgRepo, convs, resolver, publisher, hub, nodeID)

	s := &Server{
		Cfg:       cfg,
		App:       fiber.New(),
		DB:        db,
		Cache:     cacheClient,
		PubSub:    pubsub,
		KafkaProd: producer,
		KafkaCons: consumer,
		Hub:       hub,
		Convs:     convs,
		Messages:  messages,
		Presence:  presence,
		Resolver:  resolver,
		Ctx:       ctx,
		Cancel:    cancel,
	}
	return s, nil
}

// Start wires routes, starts background workers and the HTTP server.
func (s *Server) Start() error {
	authMw := middleware.NewAuthMiddleware(s.Cfg.JWTSecret, s.Cache)
	routes.Register(s.App, s.Convs, s.Messages, s.Presence, s.Resolver, s.Hub, authMw, s.Cfg.JWTSecret)

	// Every process forwards global presence events to its own sockets.
	err := s.PubSub.Subscribe(s.Ctx, broker.StatusTopicPattern(s.Cfg.CachePrefix), func(_ string, payload []byte) {
		s.Hub.HandleStatusEvent(payload)
	})
	if err != nil {
		return err
	}

	if s.KafkaCons != nil {
		msgChan := make(chan []byte, 100)
		go s.KafkaCons.Run(s.Ctx, msgChan)
		go func() {
			for payload := range msgChan {
				s.Hub.HandleMessageEvent(payload)
			}
		}()
	}

	go func() {
		addr := ":" + s.Cfg.MetricsPort
		log.Info().Str("addr", addr).Msg("metrics listener starting")
		if err := http.ListenAndServe(addr, metrics.Handler()); err != nil {
			log.Error().Err(err).Msg("metrics listener exited")
		}
	}()

	go func() {
		log.Info().Msgf("starting chat-core on :%s", s.Cfg.AppPort)
		if err := s.App.Listen(":" + s.Cfg.AppPort); err != nil {
			log.Fatal().Err(err).Msg("fiber server exited unexpectedly")
		}
	}()
	return nil
}

// Shutdown gracefully stops background workers, closes clients and shuts down the HTTP server.
func (s *Server) Shutdown() {
	log.Info().Msg("shutting down chat-core...")

	s.Cancel()
	time.Sleep(200 * time.Millisecond)

	if s.KafkaCons != nil {
		if err := s.KafkaCons.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka consumer")
		}
	}
	if s.KafkaProd != nil {
		if err := s.KafkaProd.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka producer")
		}
	}

	s.Hub.Close()

	if err := s.PubSub.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close pubsub")
	}
	if err := s.Cache.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close redis")
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		sqlDB.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.Cfg.ShutdownTimeout)
	defer cancel()
	if err := s.App.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown fiber app")
	}

	log.Info().Msg("chat-core stopped gracefully")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.AppEnv == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Msgf("received signal %s, starting graceful shutdown", sig)

	server.Shutdown()
}
