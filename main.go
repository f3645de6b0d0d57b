package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"connectify/global/config"
	"connectify/logger"
	"connectify/middleware/security"
	chatapi "connectify/module/chat"
	chatservice "connectify/module/chat/service"
	chatstore "connectify/module/chat/store"
	notifyapi "connectify/module/notify"
	notifyservice "connectify/module/notify/service"
	notifystore "connectify/module/notify/store"
	socialapi "connectify/module/social"
	socialservice "connectify/module/social/service"
	socialstore "connectify/module/social/store"
	"connectify/service/bus"
	"connectify/service/gateway"
	"connectify/service/mgo"
	"connectify/service/storage"
	storageredis "connectify/service/storage/redis"
	"connectify/tools/errs"
	"connectify/tools/ids"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	ids.SetNodeID(cfg.Node.SnowflakeID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mgo.Connect(ctx, cfg.Mongo); err != nil {
		logger.Errorf("[boot] mongo: %v", err)
		os.Exit(1)
	}
	defer mgo.Close(context.Background())
	if err := mgo.EnsureIndexes(ctx); err != nil {
		logger.Errorf("[boot] mongo indexes: %v", err)
		os.Exit(1)
	}
	if err := storageredis.Init(storageredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}); err != nil {
		logger.Errorf("[boot] redis: %v", err)
		os.Exit(1)
	}
	defer storageredis.Close()

	presence := storage.NewPresence(storageredis.Get(), cfg.Node.ID, config.PresenceTTL)
	registry := gateway.NewRegistry(presence)
	fanout := gateway.NewFanout(8, 512)
	defer fanout.Close()

	bridge, err := bus.New(cfg.Bus, cfg.Node.ID)
	if err != nil {
		logger.Errorf("[boot] bus: %v", err)
		os.Exit(1)
	}
	router := gateway.NewRouter(registry, fanout, presence, bridge, cfg.Node.ID)
	if bridge != nil {
		defer bridge.Close()
		if err := bridge.Subscribe(router.DeliverLocal); err != nil {
			logger.Errorf("[boot] bus subscribe: %v", err)
			os.Exit(1)
		}
	}

	db := mgo.GetDB()
	chatSvc := chatservice.NewChatService(
		chatstore.NewConversationStore(db),
		chatstore.NewMessageStore(db),
		router,
	)
	notifier := notifyservice.NewNotifier(notifystore.NewNotificationStore(db), router)
	socialSvc := socialservice.NewSocialService(
		socialstore.NewFollowStore(db),
		socialstore.NewRequestStore(db),
		notifier,
		router,
	)

	verifier := security.NewVerifier(cfg.Auth.JWTSecret)
	dispatcher := gateway.NewDispatcher()
	registerFrameHandlers(dispatcher, chatSvc)
	wsServer := gateway.NewServer(registry, dispatcher, verifier.VerifyToken, presence, cfg.Node.ID)

	engine := buildEngine(cfg, verifier, wsServer, chatSvc, notifier, socialSvc)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("[boot] node=%s listening on %s", cfg.Node.ID, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[boot] http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[boot] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("[boot] shutdown: %v", err)
	}
}

func buildEngine(cfg *config.AppConfig, verifier *security.Verifier, ws *gateway.Server,
	chatSvc *chatservice.ChatService, notifier *notifyservice.Notifier, socialSvc *socialservice.SocialService) *gin.Engine {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "node": cfg.Node.ID})
	})
	engine.GET("/ws", ws.HandleWS)

	api := engine.Group("/api/v1", verifier.Middleware())
	chatapi.NewAPI(chatSvc).Register(api)
	notifyapi.NewAPI(notifier).Register(api)
	socialapi.NewAPI(socialSvc).Register(api)
	return engine
}

// registerFrameHandlers wires the socket frames clients can push upstream.
// Read acknowledgement arrives over the socket too, so a client viewing a
// conversation does not need an HTTP round trip.
func registerFrameHandlers(d *gateway.Dispatcher, chatSvc *chatservice.ChatService) {
	type seenFrame struct {
		ConversationID string `json:"conversationId"`
	}
	d.Register("seen", func(ctx context.Context, c *gateway.Client, f *gateway.ClientFrame) error {
		req, err := gateway.DecodePayload[seenFrame](f.Payload)
		if err != nil {
			return err
		}
		if req.ConversationID == "" {
			return errs.ErrArgs.WrapMsg("seen frame needs a conversationId")
		}
		_, err = chatSvc.MarkSeen(ctx, req.ConversationID, c.UserID)
		return err
	})

	type sendFrame struct {
		ConversationID string   `json:"conversationId"`
		Body           string   `json:"body"`
		MessageType    string   `json:"messageType"`
		Attachments    []string `json:"attachments"`
	}
	d.Register("send_message", func(ctx context.Context, c *gateway.Client, f *gateway.ClientFrame) error {
		req, err := gateway.DecodePayload[sendFrame](f.Payload)
		if err != nil {
			return err
		}
		_, err = chatSvc.SendMessage(ctx, req.ConversationID, c.UserID, req.Body, req.MessageType, req.Attachments)
		return err
	})
}
