package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notesearch/internal"
	"github.com/starford/notesearch/internal/noteservice"
	pkgconfig "github.com/starford/notesearch/pkg/config"
)

var version = "dev"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp error: %w", err)
	}
	return nil
}

func search(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Keep stderr quiet unless the config asks for more.
	if cfg.App.LogLevel < slog.LevelWarn {
		cfg.App.LogLevel = slog.LevelWarn
	}

	scope := noteservice.Scope(cfg.Search.Scope)
	if cmd.Bool("trash") {
		scope = noteservice.ScopeTrash
	}
	q := noteservice.Query{
		Text:             strings.Join(cmd.Args().Slice(), " "),
		Tag:              cmd.String("tag"),
		Untagged:         cmd.Bool("untagged"),
		SystemTag:        cmd.String("system-tag"),
		ExcludeSystemTag: cmd.String("exclude-system-tag"),
		Scope:            scope,
		ContentOnly:      cmd.Bool("content-only"),
	}
	return internal.Search(ctx, os.Stdout, q, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:    "notesearch",
		Usage:   "Keyword search over a Markdown note vault, with live search sessions over HTTP and MCP",
		Version: version,
		Action:  serve,
		Flags:   []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Flags:  []cli.Flag{configFlag()},
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Flags:  []cli.Flag{configFlag()},
				Action: mcp,
			},
			{
				Name:      "search",
				Usage:     "Search the vault once and print the grouped result",
				ArgsUsage: "[terms...]",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "tag", Usage: "Exact tag the notes must carry"},
					&cli.BoolFlag{Name: "untagged", Usage: "Only notes without tags"},
					&cli.StringFlag{Name: "system-tag", Usage: "Required system tag, e.g. pinned"},
					&cli.StringFlag{Name: "exclude-system-tag", Usage: "Excluded system tag"},
					&cli.BoolFlag{Name: "trash", Usage: "Search trashed notes"},
					&cli.BoolFlag{Name: "content-only", Usage: "Match terms against content only"},
				},
				Action: search,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
