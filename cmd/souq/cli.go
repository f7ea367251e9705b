package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/errors"
	"github.com/hpungsan/souq/internal/ops"
	"github.com/hpungsan/souq/internal/run"
	"github.com/hpungsan/souq/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "souq",
		Usage:   "Demand and supply signals from market posts",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(db, cfg),
			classifyCmd(cfg),
			aggregateCmd(cfg),
			runsCmd(db),
			showCmd(db),
			dailyCmd(db),
			reportCmd(db),
			exportCmd(db, cfg),
			chartCmd(db, cfg),
			purgeCmd(db),
			vocabCmd(cfg),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCmd creates the run command.
func runCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Classify a raw posts table and compute daily term percentages per category",
		ArgsUsage: "<source.csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Directory for the written tables (default: config output_dir)"},
			&cli.StringFlag{Name: "categories", Aliases: []string{"c"}, Usage: "Comma-separated subset of configured categories"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Run(c.Context, db, cfg, ops.RunInput{
				Source:     c.Args().First(),
				OutputDir:  c.String("output-dir"),
				Categories: parseList(c.String("categories")),
			})
			if err != nil {
				return outputError(err)
			}

			if err := outputJSON(output); err != nil {
				return err
			}
			if n := failedCategories(output.Categories); n > 0 {
				return cli.Exit(fmt.Sprintf("[%s] %d category pipeline(s) failed", errors.ErrInternal, n), 1)
			}
			return nil
		},
	}
}

// classifyCmd creates the classify command.
func classifyCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Keep the posts matching a category rule, reduced to day and text",
		ArgsUsage: "<source.csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Usage: "Configured category name, or a label for --pattern"},
			&cli.StringSliceFlag{Name: "pattern", Aliases: []string{"p"}, Usage: "Custom alternative (repeatable)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Filtered table path (default: <output_dir>/<category>_posts.csv)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Classify(c.Context, cfg, ops.ClassifyInput{
				Source:   c.Args().First(),
				Category: c.String("category"),
				Patterns: c.StringSlice("pattern"),
				Output:   c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// aggregateCmd creates the aggregate command.
func aggregateCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "aggregate",
		Usage:     "Compute daily term percentages from a filtered day,text table",
		ArgsUsage: "<filtered.csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Daily table path (default: next to the source)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Aggregate(c.Context, cfg, ops.AggregateInput{
				Source: c.Args().First(),
				Output: c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// runsCmd creates the runs command.
func runsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded runs, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Runs(db, ops.RunsInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a run with per-category status (default: latest)",
		ArgsUsage: "[id]",
		Action: func(c *cli.Context) error {
			output, err := ops.Show(db, ops.ShowInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// dailyCmd creates the daily command.
func dailyCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "daily",
		Usage: "Print the stored daily percentages of one category of a run",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "run", Usage: "Run ID (default: latest)"},
			&cli.StringFlag{Name: "category", Usage: "Category (default: the run's first)"},
			&cli.StringFlag{Name: "terms", Usage: "Comma-separated columns to return"},
			&cli.StringFlag{Name: "from", Usage: "First day, YYYY-MM-DD"},
			&cli.StringFlag{Name: "to", Usage: "Last day, YYYY-MM-DD"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Daily(db, ops.DailyInput{
				RunID:    c.String("run"),
				Category: c.String("category"),
				Terms:    parseList(c.String("terms")),
				From:     c.String("from"),
				To:       c.String("to"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// reportCmd creates the report command.
func reportCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Print a markdown summary of a run (default: latest)",
		ArgsUsage: "[id]",
		Action: func(c *cli.Context) error {
			output, err := ops.Report(db, ops.ReportInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			_, err = fmt.Fprint(os.Stdout, output.Markdown)
			return err
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the daily tables of a run to an xlsx workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "run", Usage: "Run ID (default: latest)"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Workbook path (default: ~/.souq/exports/souq-<id>.xlsx)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, ops.ExportInput{
				RunID: c.String("run"),
				Path:  c.String("path"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// chartCmd creates the chart command.
func chartCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "chart",
		Usage:     "Render a PNG chart comparing two daily tables",
		ArgsUsage: "<" + strings.Join(ops.ChartKinds, "|") + ">",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "run", Usage: "Run ID (default: latest)"},
			&cli.StringFlag{Name: "demand", Usage: "Daily table file; overrides the run"},
			&cli.StringFlag{Name: "supply", Usage: "Daily table file compared against --demand"},
			&cli.StringFlag{Name: "term", Aliases: []string{"t"}, Usage: "Vocabulary term (daily, difference, monthly)"},
			&cli.StringFlag{Name: "from", Usage: "First day, YYYY-MM-DD"},
			&cli.StringFlag{Name: "to", Usage: "Last day, YYYY-MM-DD"},
			&cli.IntFlag{Name: "year", Usage: "Year (monthly)"},
			&cli.IntFlag{Name: "month", Usage: "Month 1-12 (monthly)"},
			&cli.IntFlag{Name: "side", Usage: "0 for the first table, 1 for the second (shares, correlation)"},
			&cli.IntFlag{Name: "top-n", Value: 10, Usage: "Terms in the correlation matrix"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "PNG path (default: config chart_dir)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Chart(db, cfg, nil, ops.ChartInput{
				Kind:       c.Args().First(),
				RunID:      c.String("run"),
				DemandPath: c.String("demand"),
				SupplyPath: c.String("supply"),
				Term:       c.String("term"),
				From:       c.String("from"),
				To:         c.String("to"),
				Year:       c.Int("year"),
				Month:      c.Int("month"),
				Side:       c.Int("side"),
				TopN:       c.Int("top-n"),
				Output:     c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete recorded runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Required: true, Usage: "Only purge runs started more than this long ago (e.g., 7d, 12h)"},
		},
		Action: func(c *cli.Context) error {
			age, err := ops.ParseAge(c.String("older-than"))
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Purge(c.Context, db, ops.PurgeInput{OlderThan: age})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// vocabCmd creates the vocab command.
func vocabCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "vocab",
		Usage: "List the configured vocabulary and category rules",
		Action: func(c *cli.Context) error {
			output, err := ops.Vocabulary(cfg)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8420, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(c.Context, srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var souqErr *errors.SouqError
	if stderrors.As(err, &souqErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", souqErr.Code, souqErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseList splits a comma-separated string, dropping empty items.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if item := strings.TrimSpace(p); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// failedCategories counts categories whose pipeline failed outright.
// Empty input, no matches and no vocabulary overlap are reported, not failures.
func failedCategories(cats []run.CategoryResult) int {
	n := 0
	for _, c := range cats {
		if c.Status == run.StatusFailed {
			n++
		}
	}
	return n
}
