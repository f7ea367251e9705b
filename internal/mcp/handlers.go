package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/ops"
	"github.com/hpungsan/souq/internal/table"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db    *sql.DB
	cfg   *config.Config
	cache *table.Cache
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg, cache: table.NewCache()}
}

// Request types for each tool

// RunRequest represents the arguments for market_run.
type RunRequest struct {
	Source     string   `json:"source"`
	OutputDir  string   `json:"output_dir,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// ClassifyRequest represents the arguments for market_classify.
type ClassifyRequest struct {
	Source   string   `json:"source"`
	Category string   `json:"category,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
	Output   string   `json:"output,omitempty"`
}

// AggregateRequest represents the arguments for market_aggregate.
type AggregateRequest struct {
	Source string `json:"source"`
	Output string `json:"output,omitempty"`
}

// RunsRequest represents the arguments for market_runs.
type RunsRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ShowRequest represents the arguments for market_show and market_report.
type ShowRequest struct {
	ID string `json:"id,omitempty"`
}

// DailyRequest represents the arguments for market_daily.
type DailyRequest struct {
	RunID    string   `json:"run_id,omitempty"`
	Category string   `json:"category,omitempty"`
	Terms    []string `json:"terms,omitempty"`
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
}

// ChartRequest represents the arguments for market_chart.
type ChartRequest struct {
	Kind       string `json:"kind"`
	RunID      string `json:"run_id,omitempty"`
	DemandPath string `json:"demand_path,omitempty"`
	SupplyPath string `json:"supply_path,omitempty"`
	Term       string `json:"term,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Year       int    `json:"year,omitempty"`
	Month      int    `json:"month,omitempty"`
	Side       int    `json:"side,omitempty"`
	TopN       int    `json:"top_n,omitempty"`
	Output     string `json:"output,omitempty"`
}

// ExportRequest represents the arguments for market_export.
type ExportRequest struct {
	RunID string `json:"run_id,omitempty"`
	Path  string `json:"path,omitempty"`
}

// PurgeRequest represents the arguments for market_purge.
type PurgeRequest struct {
	OlderThan string `json:"older_than"`
}

// decode unmarshals tool arguments into a typed request. JSON numbers
// decode into int fields only when they are whole.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// Handler implementations

// HandleRun handles the market_run tool call.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Run(ctx, h.db, h.cfg, ops.RunInput{
		Source:     input.Source,
		OutputDir:  input.OutputDir,
		Categories: input.Categories,
		Cache:      h.cache,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleClassify handles the market_classify tool call.
func (h *Handlers) HandleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassifyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Classify(ctx, h.cfg, ops.ClassifyInput{
		Source:   input.Source,
		Category: input.Category,
		Patterns: input.Patterns,
		Output:   input.Output,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAggregate handles the market_aggregate tool call.
func (h *Handlers) HandleAggregate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AggregateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Aggregate(ctx, h.cfg, ops.AggregateInput{
		Source: input.Source,
		Output: input.Output,
	})
	if err != nil {
		return errorResult(err), nil
	}
	h.cache.Invalidate(result.Output)

	return successResult(result)
}

// HandleRuns handles the market_runs tool call.
func (h *Handlers) HandleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Runs(h.db, ops.RunsInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleShow handles the market_show tool call.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Show(h.db, ops.ShowInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDaily handles the market_daily tool call.
func (h *Handlers) HandleDaily(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DailyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Daily(h.db, ops.DailyInput{
		RunID:    input.RunID,
		Category: input.Category,
		Terms:    input.Terms,
		From:     input.From,
		To:       input.To,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReport handles the market_report tool call. The markdown is
// returned as text.
func (h *Handlers) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Report(h.db, ops.ReportInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultText(result.Markdown), nil
}

// HandleChart handles the market_chart tool call.
func (h *Handlers) HandleChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChartRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Chart(h.db, h.cfg, h.cache, ops.ChartInput{
		Kind:       input.Kind,
		RunID:      input.RunID,
		DemandPath: input.DemandPath,
		SupplyPath: input.SupplyPath,
		Term:       input.Term,
		From:       input.From,
		To:         input.To,
		Year:       input.Year,
		Month:      input.Month,
		Side:       input.Side,
		TopN:       input.TopN,
		Output:     input.Output,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the market_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, ops.ExportInput{
		RunID: input.RunID,
		Path:  input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the market_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	age, err := ops.ParseAge(input.OlderThan)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Purge(ctx, h.db, ops.PurgeInput{OlderThan: age})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleVocabulary handles the market_vocabulary tool call.
func (h *Handlers) HandleVocabulary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Vocabulary(h.cfg)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var souqErr *errors.SouqError
	if stderrors.As(err, &souqErr) {
		errorObj := map[string]any{
			"code":    souqErr.Code,
			"message": souqErr.Message,
			"status":  souqErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// file paths or SQL errors
		if souqErr.Code != errors.ErrInternal && souqErr.Details != nil {
			errorObj["details"] = souqErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
