package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcfg "SeqChat/global/config"
	"SeqChat/logger"
	"SeqChat/module/chat/order"
	seqdb "SeqChat/module/chat/seq"
	handler "SeqChat/module/message/handler"
	"SeqChat/service/chat"
	"SeqChat/service/mgo"
	"SeqChat/service/natsx"
	"SeqChat/service/storage"
	storageredis "SeqChat/service/storage/redis"
	"SeqChat/tools/ids"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if path := os.Getenv("SEQCHAT_CONFIG"); path != "" {
		if err := appcfg.LoadFile(path); err != nil {
			logger.Errorf("config file %s: %v", path, err)
		}
	}
	cfg := appcfg.Global
	ids.SetNodeID(cfg.NodeID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mongo: the reconciler's source of truth. The gateway still comes up
	// without it; trackers then start at sequence 1 (logged downgrade).
	var dao *seqdb.DAO
	if err := mgo.Init(ctx, mgo.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		Username:    cfg.Mongo.Username,
		Password:    cfg.Mongo.Password,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
	}); err != nil {
		logger.Error("mongo unavailable, running without durable reconciliation", zap.Error(err))
	} else {
		dao = seqdb.NewDAO(mgo.GetDB())
		ictx, icancel := context.WithTimeout(ctx, 10*time.Second)
		if err := dao.EnsureIndexes(ictx); err != nil {
			logger.Error("ensure indexes failed", zap.Error(err))
		}
		icancel()
	}

	// Redis watermark cache in front of Mongo; optional.
	if err := storageredis.InitRedis(storageredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}); err != nil {
		logger.Error("redis unavailable, seq cache disabled", zap.Error(err))
	}

	var store order.SeqStore
	var cache *storage.CachedSeqStore
	if dao != nil {
		cache = storage.NewCachedSeqStore(storageredis.GetRedis(), dao, time.Hour)
		store = cache
	}

	// NATS fan-out publisher; optional.
	var nc *natsx.Client
	if c, err := natsx.Connect(natsx.Config{Servers: cfg.Nats.Servers, Name: cfg.Nats.Name}); err != nil {
		logger.Error("nats unavailable, delivery publish disabled", zap.Error(err))
	} else {
		nc = c
	}

	delivery := chat.NewDelivery(dao, cache, nc)

	engine := order.NewEngine(store, delivery.Flush, order.Config{
		GapTimeout:        time.Duration(cfg.Ordering.GapTimeoutMs) * time.Millisecond,
		MaxBufferSize:     cfg.Ordering.MaxBufferSize,
		InactivityTimeout: time.Duration(cfg.Ordering.InactivityTimeoutMs) * time.Millisecond,
		SweepInterval:     time.Duration(cfg.Ordering.SweepIntervalMs) * time.Millisecond,
	})

	srv := chat.NewServer(cfg.Gateway, engine, delivery)
	srv.Disp().Register(handler.NewPingHandler())
	srv.Disp().Register(handler.NewAuthHandler())
	srv.Disp().Register(handler.NewDataHandler())

	r := gin.Default()
	srv.Routes(r)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Infof("gateway %s listening on %s", cfg.Gateway, addr)
		if err := r.Run(addr); err != nil {
			logger.Error("http server exited", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Infof("signal %v, shutting down", s)
	case <-ctx.Done():
	}

	srv.Shutdown()
	nc.Close()
	_ = storageredis.CloseRedis()
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = mgo.Close(sctx)
	scancel()
}
