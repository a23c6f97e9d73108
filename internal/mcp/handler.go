package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/reverie/internal/domain/insight"
	"github.com/rpggio/reverie/internal/domain/journal"
	"github.com/rpggio/reverie/internal/generation"
)

// JournalService defines journal operations needed by MCP.
type JournalService interface {
	Add(ctx context.Context, profileID, text string) (journal.Entry, error)
	List(ctx context.Context, profileID string, r journal.Range) ([]journal.Entry, error)
	Delete(ctx context.Context, profileID, id string) error
	Clear(ctx context.Context, profileID string) error
	Latest(ctx context.Context, profileID string) (journal.Entry, error)
	ShareText(entry journal.Entry) string
	Stats(ctx context.Context, profileID string) (journal.Stats, error)
	Export(ctx context.Context, profileID string) (journal.Document, error)
	ExportFileName() string
	Import(ctx context.Context, profileID string, data []byte) (int, error)
}

// InsightService defines the metered flows needed by MCP.
type InsightService interface {
	Interpret(ctx context.Context, profileID, text string) (generation.Interpretation, error)
	GenerateArt(ctx context.Context, profileID, text string) (string, error)
	InterpretAndSave(ctx context.Context, profileID, text string) (insight.SavedInterpretation, error)
	Dream(ctx context.Context, profileID, text string) (insight.DreamResult, error)
	Usage(ctx context.Context, profileID string) (insight.UsageReport, error)
	SetPlan(ctx context.Context, profileID, name string) (insight.UsageReport, error)
	CheckEntitlement(ctx context.Context, profileID, key string) (insight.Entitlement, error)
	DeleteLocalData(ctx context.Context, profileID string) error
}

// Handler dispatches MCP commands.
type Handler struct {
	journal JournalService
	insight InsightService
	logger  *slog.Logger
}

// NewHandler creates a new MCP handler.
func NewHandler(journalSvc JournalService, insightSvc InsightService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		journal: journalSvc,
		insight: insightSvc,
		logger:  logger,
	}
}

// Handle dispatches MCP requests to domain services. Besides tool names it
// accepts tools/list and tools/call so plain JSON-RPC clients can discover
// and invoke the catalog.
func (h *Handler) Handle(ctx context.Context, profileID, sessionID, method string, params json.RawMessage) (any, error) {
	switch method {
	case "tools/list":
		return ToolListResponse{Tools: buildToolCatalog()}, nil
	case "tools/call":
		var req ToolCallParams
		if err := decodeParams(params, &req); err != nil {
			return nil, mapError(err)
		}
		method, params = req.Name, req.Arguments
	}

	h.logger.Debug("tool call", "tool", method, "profile", profileID, "session_id", sessionID)

	result, err := h.dispatch(ctx, profileID, method, params)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

func (h *Handler) dispatch(ctx context.Context, profileID, method string, params json.RawMessage) (any, error) {
	switch method {
	case "ping":
		return PingResponse{Status: "ok", Profile: profileID, Time: time.Now().UTC()}, nil
	case "save_dream":
		var req TextParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		entry, err := h.journal.Add(ctx, profileID, req.Text)
		if err != nil {
			return nil, err
		}
		return SaveDreamResponse{Entry: entry}, nil
	case "list_dreams":
		var req ListDreamsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		r := journal.Range(req.Range)
		if r == "" {
			r = journal.RangeAll
		}
		entries, err := h.journal.List(ctx, profileID, r)
		if err != nil {
			return nil, err
		}
		return ListDreamsResponse{Range: r, Count: len(entries), Dreams: entries}, nil
	case "delete_dream":
		var req DeleteDreamParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ID == "" {
			return nil, fmt.Errorf("%w: id is required", ErrInvalidParams)
		}
		if err := h.journal.Delete(ctx, profileID, req.ID); err != nil {
			return nil, err
		}
		return StatusResponse{Status: "deleted", ID: req.ID}, nil
	case "clear_dreams":
		if err := h.journal.Clear(ctx, profileID); err != nil {
			return nil, err
		}
		return StatusResponse{Status: "cleared"}, nil
	case "journal_stats":
		return h.journal.Stats(ctx, profileID)
	case "share_latest":
		entry, err := h.journal.Latest(ctx, profileID)
		if err != nil {
			return nil, err
		}
		return ShareLatestResponse{Entry: entry, Text: h.journal.ShareText(entry)}, nil
	case "interpret_dream":
		var req TextParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.insight.Interpret(ctx, profileID, req.Text)
	case "generate_art":
		var req TextParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		image, err := h.insight.GenerateArt(ctx, profileID, req.Text)
		if err != nil {
			return nil, err
		}
		return insight.DreamResult{Image: image}, nil
	case "dream":
		var req TextParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.insight.Dream(ctx, profileID, req.Text)
	case "interpret_and_save":
		var req TextParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.insight.InterpretAndSave(ctx, profileID, req.Text)
	case "get_usage":
		return h.insight.Usage(ctx, profileID)
	case "set_plan":
		var req SetPlanParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.insight.SetPlan(ctx, profileID, req.Plan)
	case "check_entitlement":
		var req CheckEntitlementParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.Key == "" {
			return nil, fmt.Errorf("%w: key is required", ErrInvalidParams)
		}
		return h.insight.CheckEntitlement(ctx, profileID, req.Key)
	case "export_journal":
		doc, err := h.journal.Export(ctx, profileID)
		if err != nil {
			return nil, err
		}
		return ExportJournalResponse{FileName: h.journal.ExportFileName(), Document: doc}, nil
	case "import_journal":
		var req ImportJournalParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		data, err := documentBytes(req.Document)
		if err != nil {
			return nil, err
		}
		n, err := h.journal.Import(ctx, profileID, data)
		if err != nil {
			return nil, err
		}
		return ImportJournalResponse{Imported: n}, nil
	case "delete_local_data":
		if err := h.insight.DeleteLocalData(ctx, profileID); err != nil {
			return nil, err
		}
		return StatusResponse{Status: "deleted"}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, method)
	}
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// documentBytes unwraps a document passed as a JSON string.
func documentBytes(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return raw, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return []byte(text), nil
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
