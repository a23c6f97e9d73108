package mcp

import (
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultLocalProfile is used when auth is off and no profile is configured.
const DefaultLocalProfile = "local"

// Config contains server configuration.
type Config struct {
	Handler       *Handler
	Resolver      ProfileResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	LocalProfile  string
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}
	localProfile := cfg.LocalProfile
	if localProfile == "" {
		localProfile = DefaultLocalProfile
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "reverie",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Each call wraps the previous handler, so profile resolution added last
	// runs first and traffic logging sees the profile.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddReceivingMiddleware(sessionMiddleware())
	// Stdio is a single local user; HTTP authenticates when enabled.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(localProfile))
	}
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Handler)

	return server
}
