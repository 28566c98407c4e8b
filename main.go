package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	architectureagent "github.com/cyberforge26/firmware-forge/agent/agents/architecture"
	buildagent "github.com/cyberforge26/firmware-forge/agent/agents/build"
	codeagent "github.com/cyberforge26/firmware-forge/agent/agents/code"
	qualityagent "github.com/cyberforge26/firmware-forge/agent/agents/quality"
	testagent "github.com/cyberforge26/firmware-forge/agent/agents/test"
	"github.com/cyberforge26/firmware-forge/agent/httpapi"
	"github.com/cyberforge26/firmware-forge/agent/mcp"
	"github.com/cyberforge26/firmware-forge/agent/orchestrator"
	"github.com/cyberforge26/firmware-forge/agent/prompt"
	"github.com/cyberforge26/firmware-forge/agent/retrieval"
	"github.com/cyberforge26/firmware-forge/agent/store"
	configx "github.com/cyberforge26/firmware-forge/pkg/config"
	logx "github.com/cyberforge26/firmware-forge/pkg/logger"
	"github.com/cyberforge26/firmware-forge/pkg/lmclient"
)

func main() {
	appCfg := configx.MustNew[AppConfig]("")
	logx.Init(logx.Config{Level: appCfg.LogLevel, PrettyFormat: appCfg.PrettyLog})

	realCfg := lmclient.RealConfig{}
	if appCfg.UseRealLM {
		realCfg = *configx.MustNew[lmclient.RealConfig]("")
	}

	governance := mcp.New(mcp.DefaultMatrix, mcp.WithAuditSink(log.Logger))
	artifactStore := store.New(appCfg.OutputDir, governance)

	retrievalEngine, err := retrieval.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load retrieval corpus")
	}

	orch := orchestrator.New(orchestrator.Config{
		MCP:          governance,
		Store:        artifactStore,
		Retrieval:    retrievalEngine,
		Prompts:      prompt.New(),
		OutputDir:    appCfg.OutputDir,
		Architecture: architectureagent.New(),
		Code:         codeagent.New(),
		Test:         testagent.New(),
		Quality:      qualityagent.New(),
		Build:        buildagent.New(),
	})

	server := httpapi.New(orch, artifactStore, retrievalEngine, realCfg, log.Logger)

	addr := fmt.Sprintf("%s:%d", appCfg.Host, appCfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", addr).Msg("firmware-forge control plane listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
