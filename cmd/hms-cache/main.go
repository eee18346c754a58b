package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/goliatone/go-hms-cache/cache"
	"github.com/goliatone/go-hms-cache/datasource"
	"github.com/goliatone/go-hms-cache/pkg/di"
	"github.com/goliatone/go-hms-cache/search"
)

func main() {
	app := cli.App{
		Name:  "hms-cache",
		Usage: "operator tool for the hospital records search cache",
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "postgres:// or sqlite:// URL of the records database",
			Value:   "sqlite://hms.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log level (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "human readable debug logging",
		},
	}

	app.Commands = []*cli.Command{
		&cli.Command{
			Name:      "search",
			Usage:     "run a listing search through the cache",
			ArgsUsage: "<entity>",
			Action:    runSearch,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "q", Usage: "search term"},
				&cli.StringSliceFlag{Name: "field", Usage: "search field, repeatable"},
				&cli.StringSliceFlag{Name: "filter", Usage: "equality filter as name=value, repeatable"},
				&cli.IntFlag{Name: "page", Value: 1},
				&cli.IntFlag{Name: "page-size"},
				&cli.StringFlag{Name: "order-by"},
				&cli.StringSliceFlag{Name: "include", Usage: "relation to load, repeatable"},
				&cli.BoolFlag{Name: "bypass", Usage: "skip the cache read and refill the entry"},
			},
		},
		&cli.Command{
			Name:      "stats",
			Usage:     "show aggregate counts for an entity type",
			ArgsUsage: "<entity>",
			Action:    runStats,
		},
		&cli.Command{
			Name:      "invalidate",
			Usage:     "purge cached searches of entity types and their dependents",
			ArgsUsage: "<entity> [entity...]",
			Action:    runInvalidate,
		},
		&cli.Command{
			Name:   "ping",
			Usage:  "check the cache backend",
			Action: runPing,
		},
		&cli.Command{
			Name:   "entities",
			Usage:  "list the entity types and their invalidation targets",
			Action: runEntities,
		},
	}

	app.RunAndExitOnError()
}

func newLogger(cctx *cli.Context) (*zap.Logger, error) {
	if cctx.Bool("debug") {
		return zap.NewDevelopment()
	}

	level, err := zap.ParseAtomicLevel(cctx.String("log-level"))
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = level
	return config.Build()
}

// setup builds the container. The database is opened only when withSource is set.
func setup(cctx *cli.Context, withSource bool) (*di.Container, func(), error) {
	logger, err := newLogger(cctx)
	if err != nil {
		return nil, nil, err
	}

	config, err := cache.LoadConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}

	opts := []di.Option{di.WithLogger(logger)}
	var source *datasource.Source
	if withSource {
		source, err = datasource.Open(cctx.String("database-url"), search.HospitalSchema(), logger)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, di.WithDataSource(source))
	}

	container, err := di.NewContainer(cctx.Context, config, opts...)
	if err != nil {
		if source != nil {
			source.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		container.Close()
		if source != nil {
			source.Close()
		}
		_ = logger.Sync()
	}
	return container, cleanup, nil
}

func runSearch(cctx *cli.Context) error {
	entity := cctx.Args().First()
	if entity == "" {
		return cli.Exit("need to provide an entity type as an argument", 1)
	}

	filters, err := parseFilters(cctx.StringSlice("filter"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	container, cleanup, err := setup(cctx, true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cctx.Context
	if cctx.Bool("bypass") {
		ctx = search.WithCacheBypass(ctx)
	}

	started := time.Now()
	page, cached, err := container.Orchestrator().Search(ctx, search.QueryDescriptor{
		Entity:           entity,
		SearchTerm:       cctx.String("q"),
		SearchFields:     cctx.StringSlice("field"),
		Filters:          filters,
		Page:             cctx.Int("page"),
		PageSize:         cctx.Int("page-size"),
		OrderBy:          cctx.String("order-by"),
		IncludeRelations: cctx.StringSlice("include"),
	})
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"cached":  cached,
		"elapsed": time.Since(started).String(),
		"result":  page,
	})
}

func runStats(cctx *cli.Context) error {
	entity := cctx.Args().First()
	if entity == "" {
		return cli.Exit("need to provide an entity type as an argument", 1)
	}

	container, cleanup, err := setup(cctx, true)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, cached, err := container.Orchestrator().Stats(cctx.Context, entity)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"cached": cached, "stats": stats})
}

func runInvalidate(cctx *cli.Context) error {
	entities := cctx.Args().Slice()
	if len(entities) == 0 {
		return cli.Exit("need to provide at least one entity type", 1)
	}

	container, cleanup, err := setup(cctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, entity := range entities {
		if _, ok := container.Schema().Entity(entity); !ok {
			return cli.Exit(fmt.Sprintf("unknown entity type %q", entity), 1)
		}
	}

	if err := container.Coordinator().InvalidateAll(cctx.Context, entities...); err != nil {
		return err
	}

	var purged []string
	for _, entity := range entities {
		purged = append(purged, container.Coordinator().Targets(entity)...)
	}
	fmt.Printf("purged search entries of: %s\n", strings.Join(purged, ", "))
	return nil
}

func runPing(cctx *cli.Context) error {
	container, cleanup, err := setup(cctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if container.Degraded() {
		return cli.Exit("cache backend unreachable", 2)
	}

	ctx, cancel := context.WithTimeout(cctx.Context, container.Config().OperationTimeout)
	defer cancel()

	started := time.Now()
	if err := container.Store().Ping(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("cache backend unreachable: %v", err), 2)
	}
	fmt.Printf("ok (%s) namespace=%s\n", time.Since(started), container.Config().NamespaceOrDefault())
	return nil
}

func runEntities(cctx *cli.Context) error {
	container, cleanup, err := setup(cctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, name := range container.Schema().Names() {
		fmt.Printf("%-16s -> %s\n", name, strings.Join(container.Coordinator().Targets(name), ", "))
	}
	return nil
}

// parseFilters reads name=value pairs. Integers and booleans are converted,
// anything else stays a string.
func parseFilters(pairs []string) (map[string]any, error) {
	filters := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid filter %q, expected name=value", pair)
		}
		filters[name] = parseScalar(value)
	}
	return filters, nil
}

func parseScalar(value string) any {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
