package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"entrypay/bot"
	"entrypay/impl/auth"
	"entrypay/impl/core"
	"entrypay/internal/admission"
	"entrypay/internal/checkout"
	"entrypay/internal/config"
	"entrypay/internal/database"
	"entrypay/internal/http-server/api"
	"entrypay/internal/poll"
	"entrypay/internal/reconciler"
	"entrypay/internal/stripeclient"
	"entrypay/internal/sweeper"
	"entrypay/lib/logger"
	"entrypay/lib/sl"
)

// Store is what every backend in internal/database provides.
type Store interface {
	admission.Database
	checkout.Database
	reconciler.Database
	sweeper.Database
	auth.Database
}

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "", "path to log file, overrides log_path")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	if *logPath != "" {
		conf.LogPath = *logPath
	}
	log := logger.SetupLogger(conf.Env, conf.LogPath)
	log.Info("starting entrypay", slog.String("config", *configPath), slog.String("env", conf.Env))

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.ApiKey, conf.Telegram.ChatIds, log)
		if err != nil {
			log.Error("telegram bot", sl.Err(err))
		} else {
			go func() {
				if err := tgBot.Start(); err != nil {
					log.Error("telegram bot start", sl.Err(err))
				}
			}()
			handler := logger.NewTelegramHandler(log.Handler(), tgBot, bot.Sanitize, slog.Level(conf.Telegram.LogLevel))
			log = slog.New(handler)
			log.Info("telegram bot started")
		}
	}

	store, closeStore := openStore(conf, log)
	defer closeStore()

	sc := stripeclient.New(conf, log)

	rec := reconciler.New(store, sc, log)
	rec.SetTolerance(time.Duration(conf.Stripe.Tolerance) * time.Minute)
	if tgBot != nil {
		rec.SetNotifier(tgBot)
	}

	handler := core.New(
		admission.New(store, log),
		checkout.New(store, sc, conf.Stripe.CheckoutBaseURL, log),
		rec,
		store,
		log,
	)
	handler.SetAuthService(auth.New(store))
	handler.SetPollOptions(poll.Options{
		Attempts: conf.Poll.Attempts,
		Delay:    time.Duration(conf.Poll.Delay) * time.Millisecond,
	})

	if conf.Sweeper.Enabled {
		sw, err := sweeper.New(sweeper.Config{
			Schedule:  conf.Sweeper.Schedule,
			Grace:     time.Duration(conf.Sweeper.Grace) * time.Minute,
			BatchSize: conf.Sweeper.BatchSize,
		}, store, sc, rec, log)
		if err != nil {
			log.Error("sweeper", sl.Err(err))
			return
		}
		sw.Start()
		defer sw.Stop()
		go sw.Run(context.Background())
	}

	// the server blocks until it fails
	err := api.New(conf, log, handler)
	log.Error("server stopped", sl.Err(err))
	if tgBot != nil {
		tgBot.Stop()
	}
}

func openStore(conf *config.Config, log *slog.Logger) (Store, func()) {
	switch conf.Store.Driver {
	case config.DriverMySQL:
		db, err := database.NewSQLClient(conf)
		if err != nil {
			log.Error("mysql client", sl.Err(err))
			panic(err)
		}
		log.Info("using mysql store", slog.String("database", conf.MySQL.Database))
		return db, db.Close
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return database.NewMemory(), func() {}
	default:
		db, err := database.NewMongoClient(conf)
		if err != nil {
			log.Error("mongo client", sl.Err(err))
			panic(err)
		}
		log.Info("using mongo store", slog.String("database", conf.Mongo.Database))
		return db, db.Close
	}
}
