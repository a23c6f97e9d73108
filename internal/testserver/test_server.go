package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/reverie/internal/domain/insight"
	"github.com/rpggio/reverie/internal/domain/journal"
	"github.com/rpggio/reverie/internal/domain/plan"
	"github.com/rpggio/reverie/internal/domain/quota"
	"github.com/rpggio/reverie/internal/generation"
	"github.com/rpggio/reverie/internal/mcp"
	"github.com/rpggio/reverie/internal/metrics"
	"github.com/rpggio/reverie/internal/sqlite"
	"github.com/rpggio/reverie/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server    *httptest.Server
	DB        *sqlite.DB
	Ledger    *quota.Ledger
	Journal   *journal.Service
	Metrics   *metrics.Collector
	Token     string
	ProfileID string
}

type options struct {
	generationURL string
	planOverride  plan.Tier
	now           func() time.Time
	location      *time.Location
}

// Option configures a TestServer.
type Option func(*options)

// WithGenerationURL points the generation client at url. Without it every
// generation is served by the fallback.
func WithGenerationURL(url string) Option {
	return func(o *options) {
		o.generationURL = url
	}
}

// WithPlanOverride pins every profile to tier.
func WithPlanOverride(tier plan.Tier) Option {
	return func(o *options) {
		o.planOverride = tier
	}
}

// WithClock fixes the clock used by the ledger and journal.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(o *options) {
		o.now = now
		o.location = loc
	}
}

func New(t *testing.T, token, profileID string, opts ...Option) *TestServer {
	t.Helper()

	o := options{now: time.Now, location: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	store := sqlite.NewKVStore(db)
	collector := metrics.NewCollector("reverie_test")

	ledgerOpts := []quota.Option{
		quota.WithClock(o.now),
		quota.WithLocation(o.location),
		quota.WithMetrics(collector),
	}
	if o.planOverride != "" {
		ledgerOpts = append(ledgerOpts, quota.WithPlanOverride(o.planOverride))
	}
	ledger := quota.NewLedger(store, nil, ledgerOpts...)
	journalSvc := journal.NewService(store, nil, journal.WithClock(o.now), journal.WithLocation(o.location))
	generator := generation.NewClient(generation.Config{
		BaseURL: o.generationURL,
		Timeout: 2 * time.Second,
	}, nil, generation.WithMetrics(collector))
	insightSvc := insight.NewService(ledger, generator, journalSvc, nil)

	handler := mcp.NewHandler(journalSvc, insightSvc, nil)
	keys := sqlite.NewAPIKeyRepository(db)

	mcpServer := mcp.NewServer(mcp.Config{
		Handler:       handler,
		Resolver:      keys,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	streamable := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return mcpServer
	}, nil)

	server := httptest.NewServer(transport.NewServer(handler, transport.AuthMiddleware(keys),
		transport.WithMetricsHandler(collector.Handler()),
		transport.WithMCPHandler(streamable),
	))

	ts := &TestServer{
		Server:    server,
		DB:        db,
		Ledger:    ledger,
		Journal:   journalSvc,
		Metrics:   collector,
		Token:     token,
		ProfileID: profileID,
	}

	require.NoError(t, ts.AddAPIKey(token, profileID))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

func (ts *TestServer) AddAPIKey(token, profileID string) error {
	return sqlite.NewAPIKeyRepository(ts.DB).Add(context.Background(), token, profileID, "test key")
}
