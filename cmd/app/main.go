package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/incipit/internal"
	pkgconfig "github.com/starford/incipit/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func compile(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: incipit compile [--project DIR] FILE.tex")
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Compile(ctx, cmd.String("project"), cmd.Args().First(), opts...)
}

func tree(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		dir = "."
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Tree(ctx, dir, opts...)
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file (defaults are used when it does not exist)",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "incipit",
		Usage:   "Backend of the incipit LaTeX editor: sandboxed project files, metadata, and PDF compilation",
		Version: version,
		Action:  serve,
		Flags:   []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the editor commands over HTTP",
				Flags:  []cli.Flag{configFlag()},
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the editor commands as MCP tools over stdio",
				Flags:  []cli.Flag{configFlag()},
				Action: mcp,
			},
			{
				Name:      "compile",
				Usage:     "Compile one project file and print the PDF location",
				ArgsUsage: "FILE.tex",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "project",
						Aliases: []string{"p"},
						Usage:   "Project root (default: the directory of FILE)",
					},
				},
				Action: compile,
			},
			{
				Name:      "tree",
				Usage:     "Print the file tree of a project directory as JSON",
				ArgsUsage: "[DIR]",
				Flags:     []cli.Flag{configFlag()},
				Action:    tree,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
