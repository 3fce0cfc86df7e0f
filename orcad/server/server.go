package server

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/orcalabs/orcad/internals/assert"
	"github.com/orcalabs/orcad/internals/conf"
	"github.com/orcalabs/orcad/internals/env"
	"github.com/orcalabs/orcad/internals/genai"
	"github.com/orcalabs/orcad/internals/sessions"
	"github.com/orcalabs/orcad/orcad/runner"
	"github.com/orcalabs/orcad/sdk"
)

type Server struct {
	Config *conf.Config
	Env    *env.EnvStruct
	Logger *slog.Logger

	store      sessions.Store
	broker     *sessions.Broker
	runner     *runner.Runner
	logFile    *os.File
	httpServer *http.Server
}

func New() *Server {
	e := env.Get()
	config := conf.GetConfig()
	dataDir, err := conf.ExpandPath(config.Server.DataDir)
	assert.AssertNil(err, "[SERVER] Failed to expand data dir")
	if dataDir != "" {
		config.Server.DataDir = filepath.Clean(dataDir)
	}
	logger, logFile := initLogger(config)

	store := newStore(config)
	broker := sessions.NewBroker()
	gen := genai.NewClient(e.GENAI_TOKEN, config.Agent.MaxTokens)

	return &Server{
		Config:  config,
		Env:     e,
		Logger:  logger,
		store:   store,
		broker:  broker,
		runner:  runner.New(store, broker, gen, logger, config),
		logFile: logFile,
	}
}

func newStore(config *conf.Config) sessions.Store {
	if config.Sessions.Backend == "sqlite" {
		dataDir := filepath.Clean(config.Server.DataDir)
		err := os.MkdirAll(dataDir, 0o755)
		assert.AssertNil(err, "[SERVER] Failed to create data directory")
		store, err := sessions.NewSQLiteStore(dataDir, config.SessionTTL())
		assert.AssertNil(err, "[SERVER] Failed to initialize session store")
		return store
	}
	return sessions.NewMemoryStore(config.SessionTTL())
}

// SafeStart starts the daemon unless one is already answering on the
// configured port.
func (s *Server) SafeStart() error {
	if sdk.IsRunning(s.Env.BASE_URL) {
		return nil
	}

	go func() {
		s.Logger.Info("starting server")
		err := s.Start()
		if err != nil {
			log.Fatal("[Orcad] Failed to start server: " + err.Error())
		}
	}()

	if sdk.WaitForStart(s.Env.BASE_URL, s.Logger) {
		return nil
	}

	return errors.New("Couldn't start server")
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Env.LISTEN_ADDR)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler: s.Router(),
	}
	s.httpServer = server
	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if s.httpServer == nil {
			s.Logger.Error("shutdown failed", "error", errors.New("server not initialized"))
			return
		}
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Logger.Error("shutdown failed", "error", err)
		}
		s.store.Close()
		if s.logFile != nil {
			s.logFile.Close()
		}
	}()
}
