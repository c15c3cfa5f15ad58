package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/dtbar/internal/config"
	"github.com/hpungsan/dtbar/internal/errors"
	"github.com/hpungsan/dtbar/internal/launchbar"
	"github.com/hpungsan/dtbar/internal/ops"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(svc *ops.Service, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "dtbar",
		Usage:   "DEVONthink search for LaunchBar",
		Version: Version,
		Commands: []*cli.Command{
			searchCmd(svc, cfg),
			groupCmd(svc, cfg),
			pickCmd(svc, cfg),
			openCmd(svc, cfg),
			actionCmd(svc, cfg),
			cacheCmd(svc, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func launchBarFlag() cli.Flag {
	return &cli.BoolFlag{Name: "launchbar", Aliases: []string{"l"}, Usage: "Print LaunchBar items"}
}

// searchCmd creates the search command.
func searchCmd(svc *ops.Service, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search DEVONthink, reusing the cached result set of the query",
		ArgsUsage: "<query>",
		Flags:     []cli.Flag{launchBarFlag()},
		Action: func(c *cli.Context) error {
			lb := c.Bool("launchbar")
			query := strings.Join(c.Args().Slice(), " ")

			ctx, cancel := commandContext(c, cfg)
			defer cancel()

			output, err := svc.Search(ctx, ops.SearchInput{Query: query, LaunchBar: lb})
			if err != nil {
				return outputFailure(err, lb)
			}
			if lb {
				return outputJSON(output.Items)
			}
			return outputJSON(output)
		},
	}
}

// groupCmd creates the group command.
func groupCmd(svc *ops.Service, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "group",
		Usage:     "List the children of a group",
		ArgsUsage: "<uuid>",
		Flags:     []cli.Flag{launchBarFlag()},
		Action: func(c *cli.Context) error {
			lb := c.Bool("launchbar")

			ctx, cancel := commandContext(c, cfg)
			defer cancel()

			output, err := svc.Group(ctx, ops.GroupInput{UUID: c.Args().First(), LaunchBar: lb})
			if err != nil {
				return outputFailure(err, lb)
			}
			if lb {
				return outputJSON(output.Items)
			}
			return outputJSON(output)
		},
	}
}

// pickCmd creates the pick command.
func pickCmd(svc *ops.Service, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "pick",
		Usage:     "Record that a result was chosen and print its reference URL",
		ArgsUsage: "<uuid>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "smart-group", Usage: "The record is a smart group"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := commandContext(c, cfg)
			defer cancel()

			output, err := svc.Pick(ctx, ops.PickInput{
				UUID:       c.Args().First(),
				SmartGroup: c.Bool("smart-group"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// openCmd creates the open command.
func openCmd(svc *ops.Service, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Open a record in DEVONthink",
		ArgsUsage: "<uuid>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "smart-group", Usage: "The record is a smart group"},
			&cli.BoolFlag{Name: "reveal", Aliases: []string{"r"}, Usage: "Bring DEVONthink to the front first"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := commandContext(c, cfg)
			defer cancel()

			output, err := svc.Open(ctx, ops.OpenInput{
				UUID:       c.Args().First(),
				SmartGroup: c.Bool("smart-group"),
				Reveal:     c.Bool("reveal"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// actionCmd creates the action command run by LaunchBar when an item is chosen.
func actionCmd(svc *ops.Service, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "action",
		Usage:     "Handle a chosen LaunchBar item: browse groups, open everything else",
		ArgsUsage: "<action-argument-json>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reveal", Aliases: []string{"r"}, Usage: "Reveal instead of browsing or opening"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := commandContext(c, cfg)
			defer cancel()

			output, err := svc.Action(ctx, ops.ActionInput{
				Argument: c.Args().First(),
				Reveal:   c.Bool("reveal"),
			})
			if err != nil {
				return outputFailure(err, true)
			}
			if output.Items != nil {
				return outputJSON(output.Items)
			}
			return outputJSON(output)
		},
	}
}

// cacheCmd creates the cache command with its subcommands.
func cacheCmd(svc *ops.Service, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the search caches",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show cache and pick counts",
				Action: func(c *cli.Context) error {
					ctx, cancel := commandContext(c, cfg)
					defer cancel()

					output, err := svc.CacheStats(ctx)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "clear",
				Usage: "Drop query snapshots (all, or one with --query)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Only drop this query's snapshot"},
					&cli.BoolFlag{Name: "content", Usage: "Also drop cached record payloads"},
				},
				Action: func(c *cli.Context) error {
					ctx, cancel := commandContext(c, cfg)
					defer cancel()

					input := ops.CacheClearInput{Content: c.Bool("content")}
					if c.IsSet("query") {
						q := c.String("query")
						input.Query = &q
					}

					output, err := svc.CacheClear(ctx, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// commandContext applies the configured backend timeout, if any.
func commandContext(c *cli.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil || cfg.BackendTimeoutSeconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(cfg.BackendTimeoutSeconds)*time.Second)
}

// outputJSON writes JSON output to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputFailure renders err as a LaunchBar error item when lb is set, since
// LaunchBar ignores the output of failing actions. Otherwise it behaves like
// outputError.
func outputFailure(err error, lb bool) error {
	if !lb {
		return outputError(err)
	}
	if encErr := outputJSON([]launchbar.Item{launchbar.ErrorItem(err)}); encErr != nil {
		return outputError(encErr)
	}
	return nil
}

// outputError formats error for CLI.
func outputError(err error) error {
	if dtErr, ok := errors.As(err); ok {
		return cli.Exit("["+string(dtErr.Code)+"] "+dtErr.Message, 1)
	}
	return cli.Exit(err.Error(), 1)
}
