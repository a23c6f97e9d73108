package integration_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func serverBinary(t *testing.T) string {
	t.Helper()
	for _, path := range []string{"./bin/reverie", "../../bin/reverie"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Skip("Server binary not found. Run 'go build -o bin/reverie ./cmd/server' first.")
	return ""
}

func stdioCommand(ctx context.Context, t *testing.T, extraEnv ...string) *exec.Cmd {
	t.Helper()
	cmd := exec.CommandContext(ctx, serverBinary(t))
	cmd.Env = append(os.Environ(),
		"REVERIE_TRANSPORT_MODE=stdio",
		"REVERIE_DB_PATH=:memory:",
		"REVERIE_GENERATION_URL=",
		"REVERIE_PLAN_OVERRIDE=",
	)
	cmd.Env = append(cmd.Env, extraEnv...)
	return cmd
}

func connectStdio(t *testing.T, extraEnv ...string) *sdkmcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "integration", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdkmcp.CommandTransport{Command: stdioCommand(ctx, t, extraEnv...)}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callText(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "tools/call %s", name)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok, "%s should answer with text", name)
	return text.Text, result.IsError
}

// syncBuffer collects process output that is read while still being written.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// Without a generation endpoint the server answers from the local fallback
// and still meters each use.
func TestStdio_FallbackInterpretationIsMetered(t *testing.T) {
	session := connectStdio(t)

	for _, text := range []string{"I was falling off a cliff", "waves over the house"} {
		body, isErr := callText(t, session, "interpret_dream", map[string]any{"text": text})
		require.False(t, isErr, body)

		var interp struct {
			Scientific    string `json:"scientific"`
			Psychological string `json:"psychological"`
			Spiritual     string `json:"spiritual"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &interp))
		require.NotEmpty(t, interp.Scientific)
		require.NotEmpty(t, interp.Psychological)
		require.NotEmpty(t, interp.Spiritual)
	}

	body, isErr := callText(t, session, "interpret_dream", map[string]any{"text": "one more"})
	require.True(t, isErr)

	var apiErr struct {
		Code         string `json:"code"`
		Message      string `json:"message"`
		RecoveryHint string `json:"recovery_hint"`
		Details      struct {
			Plan       string `json:"plan"`
			Capability string `json:"capability"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &apiErr))
	require.Equal(t, "QUOTA_EXCEEDED", apiErr.Code)
	require.Equal(t, "interpret", apiErr.Details.Capability)
	require.Equal(t, "free", apiErr.Details.Plan)
	require.Contains(t, apiErr.Message, "Free plan")
	require.NotEmpty(t, apiErr.RecoveryHint)

	// Blank text is rejected without touching the quota.
	body, isErr = callText(t, session, "interpret_dream", map[string]any{"text": "   "})
	require.True(t, isErr)
	require.Contains(t, body, "EMPTY_TEXT")
}

func TestStdio_PlanOverrideFromEnvironment(t *testing.T) {
	session := connectStdio(t, "REVERIE_PLAN_OVERRIDE=pro")

	for i := 0; i < 5; i++ {
		_, isErr := callText(t, session, "interpret_dream", map[string]any{"text": "a chase through the market"})
		require.False(t, isErr)
	}

	body, isErr := callText(t, session, "get_usage", nil)
	require.False(t, isErr)
	require.Contains(t, body, `"plan":"pro"`)
	require.Contains(t, body, `"display":"5 / ∞"`)

	// The override wins over set_plan.
	_, isErr = callText(t, session, "set_plan", map[string]any{"plan": "free"})
	require.False(t, isErr)
	body, _ = callText(t, session, "get_usage", nil)
	require.Contains(t, body, `"plan":"pro"`)
}

// Every line the server writes to stdout must be a JSON-RPC message, even
// with debug logging on.
func TestStdio_StdoutCarriesOnlyJSONRPC(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cmd := stdioCommand(ctx, t, "REVERIE_LOG_LEVEL=debug")
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	stderr := &syncBuffer{}
	cmd.Stderr = stderr
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = stdin.Close()
		_ = cmd.Wait()
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	send := func(msg string) {
		_, err := io.WriteString(stdin, msg+"\n")
		require.NoError(t, err)
	}
	// awaitID reads messages until the response with id arrives, checking
	// that every line is well-formed.
	awaitID := func(id float64) map[string]any {
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stdout closed early; stderr: %s", stderr.String())
				var msg map[string]any
				require.NoError(t, json.Unmarshal([]byte(line), &msg), "non-JSON on stdout: %q", line)
				require.Equal(t, "2.0", msg["jsonrpc"])
				if got, _ := msg["id"].(float64); got == id {
					return msg
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for response %v", id)
			}
		}
	}

	send(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"raw","version":"1.0"}}}`)
	initResp := awaitID(1)
	require.Contains(t, initResp, "result")

	send(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	send(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"save_dream","arguments":{"text":"a quiet orchard"}}}`)
	callResp := awaitID(2)
	require.Contains(t, callResp, "result")

	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "mcp traffic")
	}, 5*time.Second, 50*time.Millisecond, "debug logs belong on stderr")
}
