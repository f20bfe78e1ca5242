// Package main provides the entry point for agent-server.
//
// agent-server drives application generation through its FSM, exposing
// it over two transports:
//   - POST /message, streaming FSM progress as server-sent events
//   - an MCP stdio server, for operators driving the FSM tool-by-tool
//
// Usage:
//
//	agent-server                 Start the HTTP/SSE server (default)
//	agent-server serve           Start the HTTP/SSE server
//	agent-server mcp             Start the MCP server (stdio mode)
//	agent-server version         Show version
//	agent-server init-config     Create an example configuration file
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/appdotbuild/agent/internal/api"
	"github.com/appdotbuild/agent/internal/config"
	"github.com/appdotbuild/agent/internal/logger"
	"github.com/appdotbuild/agent/internal/mcp"
	"github.com/appdotbuild/agent/pkg/agentsession"
	"github.com/appdotbuild/agent/pkg/codeindex"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/ratelimit"
	"github.com/appdotbuild/agent/pkg/workspace"
)

// version is set via -ldflags at build time.
var version = "dev"

var configPath string

func main() {
	api.SetVersion(version)

	args := os.Args[1:]
	command := ""
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "-"):
			// skip unknown flags
		case command == "":
			command = arg
		default:
			cmdArgs = append(cmdArgs, arg)
		}
	}

	if command == "" {
		command = "serve"
	}

	var err error
	switch command {
	case "serve", "start":
		err = cmdServe(cmdArgs)
	case "mcp", "mcp-server":
		err = cmdMCP(cmdArgs)
	case "version", "-v", "--version":
		fmt.Printf("agent-server version %s\n", version)
	case "init-config":
		err = cmdInitConfig()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`agent-server - application-generation FSM runtime

Usage:
  agent-server [flags] [command]

Commands:
  serve         Start the HTTP/SSE server (default)
  mcp           Start the MCP server (stdio mode)
  version       Show version information
  init-config   Create an example configuration file
  help          Show this help

Flags:
  --config PATH   Path to configuration file (default: ~/.agent-server/config.toml)

Environment:
  AGENT_HOST        HTTP bind host (overrides the built-in default; a config file value wins)
  AGENT_PORT        HTTP bind port (overrides the built-in default; a config file value wins)
  AGENT_CONFIG      Path to configuration file (alternative to --config)
  ANTHROPIC_API_KEY API key for the Anthropic provider
  GEMINI_API_KEY    API key for the Gemini provider`)
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("AGENT_CONFIG"); envPath != "" {
		return envPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return cfg, nil
}

// buildClient resolves an AsyncLLM from LLMConfig, routing to the
// execution model regardless of provider so planning/execution/
// validation share one credential and one rate budget.
func buildClient(cfg *config.Config) llm.AsyncLLM {
	var provider llm.Provider
	switch cfg.LLM.Provider {
	case "ollama":
		provider = llm.NewOllamaProvider(cfg.LLM.APIKey)
	case "gemini":
		provider = llm.NewGeminiProvider(cfg.LLM.APIKey)
	default:
		provider = llm.NewAnthropicProvider(cfg.LLM.APIKey)
	}
	router := llm.NewRouter(provider)
	if cfg.LLM.Model != "" {
		router.SetDefaultModel(cfg.LLM.Model).SetExecutionModel(cfg.LLM.Model)
	}
	return llm.NewAsyncLLM(router.ForExecution())
}

func buildAppBuilder(cfg *config.Config, client llm.AsyncLLM, idx *codeindex.Index, limiter *ratelimit.Limiter) agentsession.AppBuilder {
	factory := workspace.NewContainerWorkspaceFactory(cfg.Workspace.ServerImage, cfg.Workspace.FrontendImage, cfg.Workspace.Workdir)
	return &agentsession.AppFSMBuilder{
		Client:     client,
		Workspaces: factory,
		Index:      idx,
		Limiter:    limiter,
	}
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.SetupLogger(cfg)
	defer logger.Stop()

	client := buildClient(cfg)
	idx, err := codeindex.New()
	if err != nil {
		return fmt.Errorf("create code index: %w", err)
	}
	limiter := ratelimit.New(cfg.Workspace.RateLimitRPM)

	builder := buildAppBuilder(cfg, client, idx, limiter)
	names := agentsession.NewLLMNameGenerator(client, cfg.LLM.Model)
	snapshots, err := agentsession.NewSnapshotStore(cfg.Service.DataDir)
	if err != nil {
		return fmt.Errorf("create snapshot store: %w", err)
	}
	sessions := api.NewSessionManager(client, builder, names, snapshots)

	var pinger api.WorkspacePinger
	if dp, err := workspace.NewDockerPinger(); err == nil {
		pinger = dp
	} else {
		log.Warn().Err(err).Msg("docker unreachable, /health/workspace will report unknown")
	}

	server := api.NewServer(cfg, sessions, pinger)

	httpServer := &http.Server{
		Addr:    cfg.Address(),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Address()).Msg("agent-server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Service.ShutdownTimeout)*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func cmdMCP(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.SetupLogger(cfg)
	defer logger.Stop()

	if cfg.LLM.APIKey == "" {
		fmt.Fprintf(os.Stderr, "[agent-server] Warning: no LLM API key configured; generation will fail until one is set.\n")
	}

	client := buildClient(cfg)
	idx, err := codeindex.New()
	if err != nil {
		return fmt.Errorf("create code index: %w", err)
	}
	limiter := ratelimit.New(cfg.Workspace.RateLimitRPM)
	builder := buildAppBuilder(cfg, client, idx, limiter)

	mcpServer := mcp.NewServer(builder)
	return mcpServer.ServeStdio()
}

func cmdInitConfig() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := config.WriteExampleConfig(path); err != nil {
		return err
	}
	fmt.Printf("Created example configuration: %s\n", path)
	return nil
}
