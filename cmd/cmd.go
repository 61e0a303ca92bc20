// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackpool/internal/formatter"
)

const formatPretty = "pretty"

// rootFlags are inherited by every subcommand.
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("TRACKPOOL_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Override the configured log level (debug, info, warn, error)",
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   fmt.Sprintf("Output format (%s, %s)", strings.Join(formatter.Formats, ", "), formatPretty),
		Value:   formatPretty,
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write the pool to a file instead of stdout",
	}
}

func sizeFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "size",
		Aliases: []string{"n"},
		Usage:   "Number of playable tracks wanted",
		Value:   10,
	}
}

// setupCommand handles first-run initialization
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the resolution database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write the example configuration file",
				Action: r.SetupConfig,
			},
		},
	}
}

// sourceCommand inspects source queries without fetching anything
func sourceCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "source",
		Usage: "Inspect source queries",
		Commands: []*cli.Command{
			{
				Name:      "parse",
				Usage:     "Show how a source query is interpreted",
				ArgsUsage: "<source query>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SourceParse,
			},
		},
	}
}

// poolCommand assembles a playable pool from a source query
func poolCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "pool",
		Usage:     "Resolve a source into a pool of playable tracks",
		ArgsUsage: "[source query]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Source query: free text, a playlist URL, deezer:chart, anilist:users:a,b ...",
			},
			sizeFlag(),
			formatFlag(),
			outputFlag(),
		},
		Action: r.Pool,
	}
}

// resolveCommand resolves a pre-fetched pool read from a file
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve catalog tracks from a JSON file into playable tracks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "JSON array of catalog tracks (- for stdin)",
				Required: true,
			},
			sizeFlag(),
			&cli.StringFlag{
				Name:  "fill",
				Usage: "Free-text query used to top up the pool when too few tracks resolve",
			},
			formatFlag(),
			outputFlag(),
		},
		Action: r.Resolve,
	}
}

// cacheCommand manages the resolution cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the resolution cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Summarize cached resolutions",
				Action: r.CacheStats,
			},
			{
				Name:  "list",
				Usage: "List cached resolutions, most recent first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Only show records from this catalog provider",
					},
					&cli.BoolFlag{
						Name:  "resolved",
						Usage: "Only show records bound to a video",
					},
					&cli.BoolFlag{
						Name:  "unresolved",
						Usage: "Only show failed attempts",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:   "clear",
				Usage:  "Delete every cached resolution",
				Action: r.CacheClear,
			},
			{
				Name:  "prune",
				Usage: "Delete failed attempts older than a duration",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age threshold; defaults to maintenance.prune_unresolved_after",
					},
				},
				Action: r.CachePrune,
			},
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the pool API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to bind; defaults to server.host",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on; defaults to server.port",
			},
		},
		Action: r.Serve,
	}
}
