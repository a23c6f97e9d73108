package mcp

import (
	"encoding/json"
	"time"

	"github.com/rpggio/reverie/internal/domain/journal"
)

// ToolDefinition describes one tool exposed over MCP and JSON-RPC.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type ToolListResponse struct {
	Tools []ToolDefinition `json:"tools"`
}

type TextParams struct {
	Text string `json:"text"`
}

type ListDreamsParams struct {
	Range string `json:"range,omitempty"`
}

type DeleteDreamParams struct {
	ID string `json:"id"`
}

type SetPlanParams struct {
	Plan string `json:"plan"`
}

type CheckEntitlementParams struct {
	Key string `json:"key"`
}

// ImportJournalParams carries the exported document either as an object or
// as the raw file contents in a JSON string.
type ImportJournalParams struct {
	Document json.RawMessage `json:"document"`
}

type PingResponse struct {
	Status  string    `json:"status"`
	Profile string    `json:"profile"`
	Time    time.Time `json:"time"`
}

type SaveDreamResponse struct {
	Entry journal.Entry `json:"entry"`
}

type ListDreamsResponse struct {
	Range  journal.Range   `json:"range"`
	Count  int             `json:"count"`
	Dreams []journal.Entry `json:"dreams"`
}

type StatusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

type ShareLatestResponse struct {
	Entry journal.Entry `json:"entry"`
	Text  string        `json:"text"`
}

type ExportJournalResponse struct {
	FileName string           `json:"file_name"`
	Document journal.Document `json:"document"`
}

type ImportJournalResponse struct {
	Imported int `json:"imported"`
}
