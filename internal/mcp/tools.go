package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stringItems = mcp.Items(map[string]any{"type": "string"})

var runToolDef = mcp.NewTool("market_run",
	mcp.WithDescription("Classify a raw posts table into demand/supply categories and compute daily vocabulary-term percentages for each. Writes <category>_posts.csv and <category>_daily.csv and records the run."),
	mcp.WithString("source", mcp.Required(), mcp.Description("Path to a CSV table with date and text columns")),
	mcp.WithString("output_dir", mcp.Description("Directory for the written tables (default: config output_dir)")),
	mcp.WithArray("categories", stringItems, mcp.Description("Subset of configured categories to run")),
)

var classifyToolDef = mcp.NewTool("market_classify",
	mcp.WithDescription("Keep the posts of a raw table matching a category rule, reduced to day and text."),
	mcp.WithString("source", mcp.Required(), mcp.Description("Path to a CSV table with date and text columns")),
	mcp.WithString("category", mcp.Description("Configured category name, or a label for custom patterns")),
	mcp.WithArray("patterns", stringItems, mcp.Description("Custom alternatives, case-insensitive")),
	mcp.WithString("output", mcp.Description("Path of the filtered table (default: <output_dir>/<category>_posts.csv)")),
)

var aggregateToolDef = mcp.NewTool("market_aggregate",
	mcp.WithDescription("Compute daily vocabulary-term percentages from a filtered day,text table."),
	mcp.WithString("source", mcp.Required(), mcp.Description("Path to a filtered table with day and text columns")),
	mcp.WithString("output", mcp.Description("Path of the daily table (default: next to source)")),
)

var runsToolDef = mcp.NewTool("market_runs",
	mcp.WithDescription("List recorded runs, newest first."),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var showToolDef = mcp.NewTool("market_show",
	mcp.WithDescription("Show one run with per-category status (default: latest run)."),
	mcp.WithString("id", mcp.Description("Run ID")),
)

var dailyToolDef = mcp.NewTool("market_daily",
	mcp.WithDescription("Return the stored daily percentages of one category of a run."),
	mcp.WithString("run_id", mcp.Description("Run ID (default: latest)")),
	mcp.WithString("category", mcp.Description("Category (default: the run's first)")),
	mcp.WithArray("terms", stringItems, mcp.Description("Columns to return, in order")),
	mcp.WithString("from", mcp.Description("First day, YYYY-MM-DD")),
	mcp.WithString("to", mcp.Description("Last day, YYYY-MM-DD")),
)

var reportToolDef = mcp.NewTool("market_report",
	mcp.WithDescription("Markdown summary of a run with the top term shares per category."),
	mcp.WithString("id", mcp.Description("Run ID (default: latest)")),
)

var chartToolDef = mcp.NewTool("market_chart",
	mcp.WithDescription("Render a PNG chart comparing the daily tables of a run (or two table files)."),
	mcp.WithString("kind", mcp.Required(), mcp.Enum("daily", "difference", "shares", "correlation", "monthly")),
	mcp.WithString("run_id", mcp.Description("Run ID (default: latest)")),
	mcp.WithString("demand_path", mcp.Description("Daily table file; overrides the run")),
	mcp.WithString("supply_path", mcp.Description("Daily table file compared against demand_path")),
	mcp.WithString("term", mcp.Description("Vocabulary term (daily, difference, monthly)")),
	mcp.WithString("from", mcp.Description("First day, YYYY-MM-DD")),
	mcp.WithString("to", mcp.Description("Last day, YYYY-MM-DD")),
	mcp.WithNumber("year", mcp.Description("Year (monthly)")),
	mcp.WithNumber("month", mcp.Description("Month 1-12 (monthly)")),
	mcp.WithNumber("side", mcp.Description("0 for the first table, 1 for the second (shares, correlation)")),
	mcp.WithNumber("top_n", mcp.Description("Terms in the correlation matrix (default 10)")),
	mcp.WithString("output", mcp.Description("PNG path (default: config chart_dir)")),
)

var exportToolDef = mcp.NewTool("market_export",
	mcp.WithDescription("Export the stored daily tables of a run to an xlsx workbook."),
	mcp.WithString("run_id", mcp.Description("Run ID (default: latest)")),
	mcp.WithString("path", mcp.Description("Workbook path (default: ~/.souq/exports/souq-<id>.xlsx)")),
)

var purgeToolDef = mcp.NewTool("market_purge",
	mcp.WithDescription("Permanently delete recorded runs started more than older_than ago."),
	mcp.WithString("older_than", mcp.Required(), mcp.Description(`Age such as "7d" or "12h"`)),
)

var vocabularyToolDef = mcp.NewTool("market_vocabulary",
	mcp.WithDescription("List the configured vocabulary terms and category rules."),
)
