package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/policylab/ohbsim/internal/logging"
	"github.com/policylab/ohbsim/internal/ratelimit"
	"github.com/policylab/ohbsim/internal/store"
)

// Tool names.
const (
	ToolScenarios = "ohbsim_scenarios"
	ToolValidate  = "ohbsim_validate"
	ToolRun       = "ohbsim_run"
	ToolRuns      = "ohbsim_runs"
	ToolMetrics   = "ohbsim_metrics"
)

// DefaultLimits are the per-tool rate limits used when Config.Limits is nil.
// Runs are expensive, queries are cheap.
var DefaultLimits = map[string]ratelimit.Limit{
	ToolScenarios: {PerMinute: 60, Burst: 10},
	ToolValidate:  {PerMinute: 30, Burst: 5},
	ToolRun:       {PerMinute: 6, Burst: 2},
	ToolRuns:      {PerMinute: 60, Burst: 10},
	ToolMetrics:   {PerMinute: 60, Burst: 10},
}

// Server wraps the MCP SDK server and exposes the simulator as tools.
type Server struct {
	server       *sdk.Server
	runs         *store.SQLiteRunStore
	configDir    string
	logger       *slog.Logger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters
}

// Config holds server configuration.
type Config struct {
	Name         string // Server name (e.g., "ohbsim")
	Version      string // Server version
	ConfigDir    string // Directory holding base_config.yaml and scenarios/
	DatabasePath string // SQLite run store
	AuditDir     string // Receives audit.jsonl; empty disables auditing
	Logger       *slog.Logger
	Limits       map[string]ratelimit.Limit
}

// NewServer creates a new MCP server with the ohbsim tools.
func NewServer(cfg *Config) (*Server, error) {
	runs, err := store.NewSQLiteRunStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	limits := cfg.Limits
	if limits == nil {
		limits = DefaultLimits
	}

	logger := logging.OrDiscard(cfg.Logger)
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		runs:         runs,
		configDir:    cfg.ConfigDir,
		logger:       logger,
		toolLimiters: ratelimit.NewToolLimiters(limits),
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	if err := s.registerTools(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the run store and audit log.
func (s *Server) Close() error {
	auditErr := s.auditLogger.Close()
	if err := s.runs.Close(); err != nil {
		return err
	}
	return auditErr
}
