package api

import (
	"go.uber.org/zap"

	"shiprelay/internal/auth"
	"shiprelay/internal/config"
	"shiprelay/internal/relay"
	"shiprelay/internal/shopify"
	"shiprelay/internal/store"
)

// Server holds the dependencies of every HTTP handler.
type Server struct {
	Store    store.Store
	Backend  *relay.BackendClient
	Shopify  *shopify.Client
	Recorder *relay.Recorder
	Auth     *auth.Verifier
	Broker   EventBroker
	Log      *zap.SugaredLogger
	Cfg      config.Config
}

// NewServer wires the store, brokers, and clients from config. With no
// DATABASE_URL the store is in-memory; with no REDIS_URL the broker is
// process-local.
func NewServer(cfg config.Config, log *zap.SugaredLogger) (*Server, error) {
	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.DBMigrate {
			if err := pg.MigrateDir("db/migrations"); err != nil {
				return nil, err
			}
		}
		st = pg
		log.Infow("store: postgres")
	} else {
		st = store.NewMemory()
		log.Infow("store: in-memory")
	}

	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		broker = rb
		log.Infow("broker: redis")
	}

	return &Server{
		Store:    st,
		Backend:  relay.NewBackendClient(log),
		Shopify:  shopify.NewClient(log, cfg.ShopifyAPIVersion),
		Recorder: relay.NewRecorder(st, log),
		Auth:     auth.NewVerifier(cfg.AuthMode, cfg.AuthSecret),
		Broker:   broker,
		Log:      log,
		Cfg:      cfg,
	}, nil
}
