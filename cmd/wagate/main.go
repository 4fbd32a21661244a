package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talkincode/wagate/config"
	"github.com/talkincode/wagate/internal/adminapi"
	"github.com/talkincode/wagate/internal/app"
	"github.com/talkincode/wagate/internal/bus"
	"github.com/talkincode/wagate/internal/gatewayapi"
	"github.com/talkincode/wagate/internal/journal"
	"github.com/talkincode/wagate/internal/repository"
	"github.com/talkincode/wagate/internal/sessionstore"
	"github.com/talkincode/wagate/internal/waclient"
	"github.com/talkincode/wagate/internal/wamanager"
	"github.com/talkincode/wagate/internal/webhook"
	"github.com/talkincode/wagate/internal/webserver"
)

var (
	conffile = flag.String("c", "/etc/wagate.yml", "config file")
	initdb   = flag.Bool("initdb", false, "drop and recreate the database schema, then exit")
	showVer  = flag.Bool("v", false, "print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println("wagate", version)
		return
	}

	cfg := config.LoadConfig(*conffile)
	_ = os.MkdirAll(cfg.System.Workdir, 0o755)

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.L().Info("database initialized")
		return
	}

	store := sessionstore.New(cfg.SessionDir())
	eventJournal, err := journal.Open(cfg.JournalFile())
	if err != nil {
		zap.L().Fatal("event journal open failed", zap.Error(err))
	}
	defer eventJournal.Close()

	factory, err := waclient.DefaultFactory()
	if err != nil {
		zap.L().Fatal("no protocol client driver linked", zap.Error(err))
	}

	broker := bus.New()
	instanceRepo := repository.NewGormInstanceRepository(application.DB())
	manager := wamanager.New(wamanager.Config{
		TeardownTimeout:    cfg.Session.TeardownTimeout,
		AutoReconnect:      cfg.Session.AutoReconnect,
		AutoReconnectDelay: cfg.Session.AutoReconnectDelay,
	}, factory, store, instanceRepo, broker, eventJournal)

	deliveries, err := webhook.NewService(webhook.Config{
		Workers:      cfg.Webhook.Workers,
		MaxRetries:   cfg.Webhook.MaxRetries,
		Timeout:      cfg.Webhook.Timeout,
		DrainEvery:   cfg.Webhook.DrainEvery,
		RetryBackoff: cfg.Webhook.RetryBackoff,
		DrainBatch:   cfg.Webhook.DrainBatch,
	}, broker, webhook.NewGormDeliveryRepository(application.DB()), instanceRepo)
	if err != nil {
		zap.L().Fatal("webhook service init failed", zap.Error(err))
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := deliveries.Start(rootCtx); err != nil {
		zap.L().Fatal("webhook service start failed", zap.Error(err))
	}
	defer deliveries.Stop()

	application.StartJobs(eventJournal, deliveries)

	webserver.Init(cfg, application.DB(), instanceRepo.GetByToken)
	adminapi.InitRouter(manager)
	gatewayapi.InitRouter(manager)

	if cfg.Session.ConnectOnBoot {
		go manager.ResumeConnected(rootCtx)
	}

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		return webserver.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return webserver.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("server exited", zap.Error(err))
	}
	zap.L().Info("wagate stopped")
}
