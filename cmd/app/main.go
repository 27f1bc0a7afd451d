package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/arpa73/AIKnowSys-sub002/internal"
	"github.com/arpa73/AIKnowSys-sub002/internal/apperr"
	"github.com/arpa73/AIKnowSys-sub002/internal/knowledge"
	"github.com/arpa73/AIKnowSys-sub002/internal/models"
	pkgconfig "github.com/arpa73/AIKnowSys-sub002/pkg/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "aiknowsys",
		Usage: "Markdown knowledge base for AI coding agents: sessions, plans, and learned patterns with a rebuildable JSON index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "aiknowsys.yaml",
				Sources: cli.EnvVars("AIKNOWSYS_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			createCommand(),
			updateCommand(),
			queryCommand(),
			showCommand(),
			archiveCommand(),
			rebuildCommand(),
			searchCommand(),
			watchCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy onto process exit codes.
func exitCode(err error) int {
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		return exit.ExitCode()
	}
	switch apperr.Kind(err) {
	case apperr.KindValidation, apperr.KindMalformed:
		return 2
	case apperr.KindNotFound:
		return 3
	case apperr.KindConsistency:
		return 4
	case apperr.KindConflict:
		return 5
	default:
		return 1
	}
}

// newApp loads configuration and wires the application for one command.
func newApp(cmd *cli.Command) (*internal.App, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if cmd.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	return internal.NewApp(internal.WithConfig(cfg))
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// parseFieldArgs turns repeated k=v flags into a field map. Integer-looking
// values become ints so numeric fields like duration_minutes coerce.
func parseFieldArgs(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, apperr.Validationf("field %q: want key=value", pair)
		}
		if n, err := strconv.Atoi(v); err == nil {
			fields[k] = n
		} else {
			fields[k] = v
		}
	}
	return fields, nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validationf("--%s: unparsable date %q (want RFC 3339 or YYYY-MM-DD)", name, value)
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a record: writes the markdown file and updates the index atomically",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "session, plan, or pattern"},
			&cli.StringFlag{Name: "id", Usage: "Record id (required for plans and patterns)"},
			&cli.StringFlag{Name: "status", Usage: "Initial status (defaults per type)"},
			&cli.StringSliceFlag{Name: "topic", Usage: "Topic tag (repeatable)"},
			&cli.StringSliceFlag{Name: "field", Usage: "Extra frontmatter field key=value (repeatable)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := models.ParseType(cmd.String("type"))
			if err != nil {
				return err
			}
			fields, err := parseFieldArgs(cmd.StringSlice("field"))
			if err != nil {
				return err
			}
			if id := cmd.String("id"); id != "" {
				fields["id"] = id
			}
			if status := cmd.String("status"); status != "" {
				fields["status"] = status
			}
			if topics := cmd.StringSlice("topic"); len(topics) > 0 {
				fields["topics"] = topics
			}

			rec, err := app.Service.Create(t, fields)
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Merge partial fields into an existing record",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "session, plan, or pattern"},
			&cli.StringFlag{Name: "id", Required: true, Usage: "Record id"},
			&cli.StringFlag{Name: "status", Usage: "New status"},
			&cli.StringSliceFlag{Name: "topic", Usage: "Replacement topic set (repeatable)"},
			&cli.StringSliceFlag{Name: "set", Usage: "Field to merge key=value (repeatable)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := models.ParseType(cmd.String("type"))
			if err != nil {
				return err
			}
			partial, err := parseFieldArgs(cmd.StringSlice("set"))
			if err != nil {
				return err
			}
			if status := cmd.String("status"); status != "" {
				partial["status"] = status
			}
			if topics := cmd.StringSlice("topic"); len(topics) > 0 {
				partial["topics"] = topics
			}
			if len(partial) == 0 {
				return apperr.Validationf("nothing to update: pass --status, --topic, or --set")
			}

			rec, err := app.Service.Update(t, cmd.String("id"), partial)
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "List records matching status, topic, and date-range filters",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "session, plan, or pattern"},
			&cli.StringFlag{Name: "status", Usage: "Exact status match"},
			&cli.StringSliceFlag{Name: "topic", Usage: "Topic the record must carry (repeatable, any match)"},
			&cli.StringFlag{Name: "since", Usage: "Inclusive lower bound on created"},
			&cli.StringFlag{Name: "until", Usage: "Inclusive upper bound on created"},
			&cli.BoolFlag{Name: "newest", Usage: "Sort by created descending"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := models.ParseType(cmd.String("type"))
			if err != nil {
				return err
			}
			f := knowledge.Filter{
				Status:      cmd.String("status"),
				Topics:      cmd.StringSlice("topic"),
				NewestFirst: cmd.Bool("newest"),
			}
			if f.Since, err = parseDateFlag("since", cmd.String("since")); err != nil {
				return err
			}
			if f.Until, err = parseDateFlag("until", cmd.String("until")); err != nil {
				return err
			}

			recs, err := app.Service.Query(t, f)
			if err != nil {
				return err
			}
			return printJSON(recs)
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print one record's metadata and markdown body",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "session, plan, or pattern"},
			&cli.StringFlag{Name: "id", Required: true, Usage: "Record id"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := models.ParseType(cmd.String("type"))
			if err != nil {
				return err
			}
			rec, body, err := app.Service.Get(t, cmd.String("id"))
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"record": rec, "body": body})
		},
	}
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Move records older than N days into the archive tree (N=0 archives everything)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "session, plan, or pattern"},
			&cli.IntFlag{Name: "older-than", Required: true, Usage: "Age threshold in days since last update; 0 means everything up to now"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := models.ParseType(cmd.String("type"))
			if err != nil {
				return err
			}
			moved, err := app.Service.Archive(t, int(cmd.Int("older-than")))
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"archived": len(moved), "records": moved})
		},
	}
}

func rebuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Force a full index rebuild from the markdown tree",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Report the count for one type only"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			var t models.RecordType
			if raw := cmd.String("type"); raw != "" {
				if t, err = models.ParseType(raw); err != nil {
					return err
				}
			}
			count, err := app.Service.Rebuild(t)
			if err != nil {
				return err
			}
			return printJSON(map[string]int{"records": count})
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search across record bodies, ids, and topics",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Restrict to one record type"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Max results"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if query == "" {
				return apperr.Validationf("search query is required")
			}
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			results, err := app.Service.Search(query, cmd.String("type"), int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the knowledge tree and keep the index fresh continuously",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.RunWatch(ctx)
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the knowledge tools over the Model Context Protocol (stdio)",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.RunMCP(ctx)
		},
	}
}
