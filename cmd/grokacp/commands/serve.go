package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grokacp/grokacp/internal/agentcore"
	"github.com/grokacp/grokacp/internal/audit"
	"github.com/grokacp/grokacp/internal/config"
	"github.com/grokacp/grokacp/internal/hook"
	"github.com/grokacp/grokacp/internal/logging"
	"github.com/grokacp/grokacp/internal/ratelimit"
	"github.com/grokacp/grokacp/internal/registry/tools"
	"github.com/grokacp/grokacp/internal/security"
	"github.com/grokacp/grokacp/internal/transport"
	"github.com/grokacp/grokacp/internal/upstream"
)

// sessionMaxAge and sweepInterval bound how long an idle session's
// history is kept in memory before the sweeper evicts it.
const (
	sessionMaxAge = 30 * time.Minute
	sweepInterval = 5 * time.Minute
)

var (
	serveTCP       bool
	serveAddress   string
	serveWorkspace string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent, speaking the Agent Client Protocol over stdio or TCP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveTCP, "tcp", false, "Listen on a TCP address instead of stdio")
	serveCmd.Flags().StringVar(&serveAddress, "address", "127.0.0.1:9090", "Address to listen on when --tcp is set")
	serveCmd.Flags().StringVar(&serveWorkspace, "workspace", "", "Initial trusted workspace root (defaults to the current directory)")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir := serveWorkspace
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workDir = wd
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	auditLogger, err := audit.NewLogger(cfg.ExternalAccessConfig.Logging)
	if err != nil {
		return fmt.Errorf("init audit logger: %w", err)
	}

	sec := security.NewManager(cfg.WorkingDirectory, auditLogger)
	sec.UpdateExternalAccessConfig(cfg.ExternalAccessConfig)
	for _, root := range cfg.InitialTrustedRoots {
		sec.AddTrustedDirectory(root)
	}

	reg := tools.NewDefaultRegistry(sec, "")
	hooks := hook.NewChain()
	limiter := ratelimit.New(cfg.RateLimit)

	ctx := context.Background()
	upstreamClient, err := upstream.NewClient(ctx, cfg.Provider, cfg.APIKey, cfg.Model, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("init upstream client: %w", err)
	}

	agent := agentcore.New(cfg, sec, reg, hooks, upstreamClient, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, agent)

	if serveTCP {
		ln, err := transport.ListenTCP(serveAddress)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", serveAddress, err)
		}
		logging.Info().Str("address", serveAddress).Msg("grokacp listening")
		return transport.ServeTCP(ctx, agent, ln)
	}

	logging.Info().Msg("grokacp serving over stdio")
	return transport.ServeStdio(ctx, agent, os.Stdin, os.Stdout)
}

// sweepSessions periodically evicts sessions that have gone idle past
// sessionMaxAge, so a long-lived server doesn't accumulate history for
// connections that never sent a follow-up prompt.
func sweepSessions(ctx context.Context, agent *agentcore.Agent) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := agent.Sessions.Sweep(sessionMaxAge); removed > 0 {
				logging.Debug().Int("removed", removed).Msg("swept idle sessions")
			}
		}
	}
}
