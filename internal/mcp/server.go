package mcp

import (
	"database/sql"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/souq/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"market_run": {
		def:     runToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRun },
	},
	"market_classify": {
		def:     classifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassify },
	},
	"market_aggregate": {
		def:     aggregateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAggregate },
	},
	"market_runs": {
		def:     runsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuns },
	},
	"market_show": {
		def:     showToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShow },
	},
	"market_daily": {
		def:     dailyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDaily },
	},
	"market_report": {
		def:     reportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReport },
	},
	"market_chart": {
		def:     chartToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChart },
	},
	"market_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"market_purge": {
		def:     purgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePurge },
	},
	"market_vocabulary": {
		def:     vocabularyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVocabulary },
	},
}

// AllToolNames returns the sorted names of all tools.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the souq tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"souq",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for _, name := range AllToolNames() {
		if disabled[name] {
			continue
		}
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, version string) error {
	s := NewServer(db, cfg, version)
	return server.ServeStdio(s)
}
