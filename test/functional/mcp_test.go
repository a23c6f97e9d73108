package functional_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/reverie/internal/domain/plan"
	"github.com/rpggio/reverie/internal/testserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type rpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func rpcCallAs(t *testing.T, ts *testserver.TestServer, token, method string, params any) rpcResponse {
	t.Helper()

	payload := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if params != nil {
		payload["params"] = params
	}

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/rpc", bytes.NewBuffer(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(bodyBytes))
	}

	var result rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func rpcCall(t *testing.T, ts *testserver.TestServer, method string, params any) rpcResponse {
	t.Helper()
	return rpcCallAs(t, ts, ts.Token, method, params)
}

// callTool invokes a tool and requires success.
func callTool(t *testing.T, ts *testserver.TestServer, toolName string, args any) json.RawMessage {
	t.Helper()
	resp := rpcCall(t, ts, toolName, args)
	require.Nil(t, resp.Error, "RPC error: %+v", resp.Error)
	return resp.Result
}

// callToolError invokes a tool and returns the application error code.
func callToolError(t *testing.T, ts *testserver.TestServer, toolName string, args any) (string, *rpcError) {
	t.Helper()
	resp := rpcCall(t, ts, toolName, args)
	require.NotNil(t, resp.Error, "expected %s to fail", toolName)
	code, _ := resp.Error.Data["code"].(string)
	return code, resp.Error
}

type usageReport struct {
	Plan  string `json:"plan"`
	Usage []struct {
		Capability string `json:"capability"`
		Used       int    `json:"used"`
		Display    string `json:"display"`
		Allowed    bool   `json:"allowed"`
	} `json:"usage"`
}

func TestFunctional_Authentication(t *testing.T) {
	ts := testserver.New(t, "token", "profile1")

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/rpc", bytes.NewBufferString(`{"jsonrpc":"2.0","method":"list_dreams","id":1}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, ts.Server.URL+"/rpc", bytes.NewBufferString(`{"jsonrpc":"2.0","method":"list_dreams","id":1}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestFunctional_JournalWorkflow(t *testing.T) {
	ts := testserver.New(t, "token", "profile1")

	var first, second struct {
		Entry struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "save_dream", map[string]any{"text": "  I was flying over the sea  "}), &first))
	require.Equal(t, "I was flying over the sea", first.Entry.Text)
	require.NoError(t, json.Unmarshal(callTool(t, ts, "save_dream", map[string]any{"text": "My teeth fell out"}), &second))

	var list struct {
		Count  int `json:"count"`
		Dreams []struct {
			ID string `json:"id"`
		} `json:"dreams"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "list_dreams", map[string]any{"range": "week"}), &list))
	require.Equal(t, 2, list.Count)
	require.Equal(t, second.Entry.ID, list.Dreams[0].ID, "newest first")

	var stats struct {
		Count    int `json:"count"`
		Streak   int `json:"streak"`
		ThisWeek int `json:"this_week"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "journal_stats", nil), &stats))
	require.Equal(t, 2, stats.Count)
	require.Equal(t, 1, stats.Streak)
	require.Equal(t, 2, stats.ThisWeek)

	var share struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "share_latest", nil), &share))
	require.Contains(t, share.Text, "My teeth fell out")

	_ = callTool(t, ts, "delete_dream", map[string]any{"id": second.Entry.ID})
	_ = callTool(t, ts, "delete_dream", map[string]any{"id": second.Entry.ID})
	require.NoError(t, json.Unmarshal(callTool(t, ts, "list_dreams", nil), &list))
	require.Equal(t, 1, list.Count)

	code, _ := callToolError(t, ts, "save_dream", map[string]any{"text": "   "})
	require.Equal(t, "EMPTY_TEXT", code)

	code, _ = callToolError(t, ts, "list_dreams", map[string]any{"range": "decade"})
	require.Equal(t, "INVALID_RANGE", code)

	_ = callTool(t, ts, "clear_dreams", nil)
	code, _ = callToolError(t, ts, "share_latest", nil)
	require.Equal(t, "NO_ENTRIES", code)
}

func TestFunctional_ExportImportRoundTrip(t *testing.T) {
	ts := testserver.New(t, "token", "profile1")
	require.NoError(t, ts.AddAPIKey("token2", "profile2"))

	_ = callTool(t, ts, "save_dream", map[string]any{"text": "A door in the ocean"})
	_ = callTool(t, ts, "save_dream", map[string]any{"text": "Chased through a mall"})

	var exported struct {
		FileName string          `json:"file_name"`
		Document json.RawMessage `json:"document"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "export_journal", nil), &exported))
	require.True(t, strings.HasPrefix(exported.FileName, "dream-journal-"))

	// Import into another profile, passing the document as file contents.
	resp := rpcCallAs(t, ts, "token2", "import_journal", map[string]any{"document": string(exported.Document)})
	require.Nil(t, resp.Error)
	var imported struct {
		Imported int `json:"imported"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &imported))
	require.Equal(t, 2, imported.Imported)

	resp = rpcCallAs(t, ts, "token2", "list_dreams", nil)
	require.Nil(t, resp.Error)
	require.Contains(t, string(resp.Result), "A door in the ocean")

	// A bad document changes nothing.
	resp = rpcCallAs(t, ts, "token2", "import_journal", map[string]any{"document": map[string]any{"dreams": "nope"}})
	require.NotNil(t, resp.Error)
	require.Equal(t, "INVALID_DOCUMENT", resp.Error.Data["code"])

	resp = rpcCallAs(t, ts, "token2", "journal_stats", nil)
	require.Nil(t, resp.Error)
	require.Contains(t, string(resp.Result), `"count":2`)
}

func TestFunctional_ProfilesAreIsolated(t *testing.T) {
	ts := testserver.New(t, "token", "profile1")
	require.NoError(t, ts.AddAPIKey("other", "profile2"))

	_ = callTool(t, ts, "save_dream", map[string]any{"text": "mine"})
	_ = callTool(t, ts, "interpret_dream", map[string]any{"text": "mine"})

	resp := rpcCallAs(t, ts, "other", "list_dreams", nil)
	require.Nil(t, resp.Error)
	require.Contains(t, string(resp.Result), `"count":0`)

	resp = rpcCallAs(t, ts, "other", "get_usage", nil)
	require.Nil(t, resp.Error)
	var usage usageReport
	require.NoError(t, json.Unmarshal(resp.Result, &usage))
	require.Equal(t, 0, usage.Usage[0].Used)
}

func TestFunctional_FreePlanQuota(t *testing.T) {
	ts := testserver.New(t, "token", "profile1")

	var usage usageReport
	require.NoError(t, json.Unmarshal(callTool(t, ts, "get_usage", nil), &usage))
	require.Equal(t, "free", usage.Plan)
	require.Equal(t, "0 / 2", usage.Usage[0].Display)

	// No generation service is configured, so the fallback answers.
	var interp struct {
		Scientific string `json:"scientific"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "interpret_dream", map[string]any{"text": "deep water everywhere"}), &interp))
	require.Contains(t, interp.Scientific, "Water")
	_ = callTool(t, ts, "interpret_dream", map[string]any{"text": "again"})

	code, rpcErr := callToolError(t, ts, "interpret_dream", map[string]any{"text": "third"})
	require.Equal(t, "QUOTA_EXCEEDED", code)
	require.Contains(t, rpcErr.Message, "Daily interpret limit reached on the Free plan")

	// Blank text is rejected before quota.
	code, _ = callToolError(t, ts, "interpret_dream", map[string]any{"text": ""})
	require.Equal(t, "EMPTY_TEXT", code)

	// Interpretation is used up; art still has one use.
	var dream struct {
		Interpretation *json.RawMessage `json:"interpretation"`
		Image          string           `json:"image"`
		Denials        []struct {
			Capability string `json:"capability"`
		} `json:"denials"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "dream", map[string]any{"text": "a red kite"}), &dream))
	require.Nil(t, dream.Interpretation)
	require.True(t, strings.HasPrefix(dream.Image, "data:image/svg+xml"))
	require.Len(t, dream.Denials, 1)
	require.Equal(t, "interpret", dream.Denials[0].Capability)

	require.NoError(t, json.Unmarshal(callTool(t, ts, "get_usage", nil), &usage))
	require.Equal(t, "2 / 2", usage.Usage[0].Display)
	require.Equal(t, "1 / 1", usage.Usage[1].Display)
	require.False(t, usage.Usage[0].Allowed)

	// Upgrading lifts the limit immediately; usage is kept.
	require.NoError(t, json.Unmarshal(callTool(t, ts, "set_plan", map[string]any{"plan": "Standard"}), &usage))
	require.Equal(t, "standard", usage.Plan)
	require.Equal(t, "2 / ∞", usage.Usage[0].Display)
	_ = callTool(t, ts, "interpret_dream", map[string]any{"text": "now unlimited"})

	code, _ = callToolError(t, ts, "set_plan", map[string]any{"plan": "platinum"})
	require.Equal(t, "UNKNOWN_PLAN", code)

	var entitlement struct {
		Kind    string `json:"kind"`
		Allowed bool   `json:"allowed"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "check_entitlement", map[string]any{"key": "archetypal"}), &entitlement))
	require.Equal(t, "lens", entitlement.Kind)
	require.False(t, entitlement.Allowed)
	require.NoError(t, json.Unmarshal(callTool(t, ts, "check_entitlement", map[string]any{"key": "commercial"}), &entitlement))
	require.True(t, entitlement.Allowed)

	_ = callTool(t, ts, "delete_local_data", nil)
	require.NoError(t, json.Unmarshal(callTool(t, ts, "get_usage", nil), &usage))
	require.Equal(t, "standard", usage.Plan, "plan survives local data deletion")
	require.Equal(t, 0, usage.Usage[0].Used)
}

func TestFunctional_PlanOverride(t *testing.T) {
	ts := testserver.New(t, "token", "profile1", testserver.WithPlanOverride(plan.TierPro))

	_ = callTool(t, ts, "set_plan", map[string]any{"plan": "free"})
	var usage usageReport
	require.NoError(t, json.Unmarshal(callTool(t, ts, "get_usage", nil), &usage))
	require.Equal(t, "pro", usage.Plan)
}

func TestFunctional_RemoteGeneration(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/interpret":
			_, _ = w.Write([]byte(`{"scientific":"remote sci","psychological":"remote psy","spiritual":"remote spi"}`))
		case "/api/generate-image":
			_, _ = w.Write([]byte(`{"imageDataUrl":"data:image/png;base64,iVBORw0KGgo="}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(remote.Close)

	ts := testserver.New(t, "token", "profile1", testserver.WithGenerationURL(remote.URL))

	var saved struct {
		Interpretation struct {
			Scientific string `json:"scientific"`
		} `json:"interpretation"`
		Entry struct {
			Text string `json:"text"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "interpret_and_save", map[string]any{"text": "a quiet library"}), &saved))
	require.Equal(t, "remote sci", saved.Interpretation.Scientific)
	require.Equal(t, "a quiet library", saved.Entry.Text)

	var art struct {
		Image string `json:"image"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "generate_art", map[string]any{"text": "a quiet library"}), &art))
	require.Equal(t, "data:image/png;base64,iVBORw0KGgo=", art.Image)
}

func TestFunctional_RemoteFailureStillCharges(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(remote.Close)

	ts := testserver.New(t, "token", "profile1", testserver.WithGenerationURL(remote.URL))

	var interp struct {
		Spiritual string `json:"spiritual"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, ts, "interpret_dream", map[string]any{"text": "nothing special"}), &interp))
	require.NotEmpty(t, interp.Spiritual)

	var usage usageReport
	require.NoError(t, json.Unmarshal(callTool(t, ts, "get_usage", nil), &usage))
	require.Equal(t, 1, usage.Usage[0].Used)
}

func TestFunctional_ToolDiscoveryOverRPC(t *testing.T) {
	ts := testserver.New(t, "token", "profile1")

	resp := rpcCall(t, ts, "tools/list", nil)
	require.Nil(t, resp.Error)
	var tools struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &tools))
	require.Len(t, tools.Tools, 17)

	names := make(map[string]bool)
	for _, tool := range tools.Tools {
		names[tool.Name] = true
		require.NotEmpty(t, tool.Description)
		require.NotNil(t, tool.InputSchema)
	}
	for _, name := range []string{"save_dream", "interpret_dream", "dream", "get_usage", "import_journal"} {
		require.True(t, names[name], "missing tool %s", name)
	}

	resp = rpcCall(t, ts, "tools/call", map[string]any{"name": "ping"})
	require.Nil(t, resp.Error)
	require.Contains(t, string(resp.Result), `"profile":"profile1"`)

	resp = rpcCall(t, ts, "tools/call", map[string]any{"name": "summon_dragon"})
	require.NotNil(t, resp.Error)
	require.Equal(t, "UNKNOWN_TOOL", resp.Error.Data["code"])
}

func TestFunctional_MetricsEndpoint(t *testing.T) {
	ts := testserver.New(t, "token", "profile1")

	_ = callTool(t, ts, "interpret_dream", map[string]any{"text": "a staircase"})

	resp, err := http.Get(ts.Server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `reverie_test_quota_consumed_total{capability="interpret",plan="free"} 1`)
	require.Contains(t, string(body), `reverie_test_generation_results_total{capability="interpret",source="fallback"} 1`)
}

type bearerTransport struct {
	token string
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}

func TestFunctional_StreamableMCP(t *testing.T) {
	ts := testserver.New(t, "token", "profile1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: ts.Token}},
	}, nil)
	require.NoError(t, err)
	defer session.Close()

	require.Equal(t, "reverie", session.InitializeResult().ServerInfo.Name)

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "save_dream",
		Arguments: map[string]any{"text": "saved over MCP"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	// The same profile sees it over JSON-RPC.
	assert.Contains(t, string(callTool(t, ts, "list_dreams", nil)), "saved over MCP")

	resources, err := session.ListResources(ctx, nil)
	require.NoError(t, err)
	uris := make(map[string]bool)
	for _, r := range resources.Resources {
		uris[r.URI] = true
	}
	require.True(t, uris["reverie://docs/plans"])
}
