// Command gridctl is the CLI companion to gridcored: it can refresh a
// local SQLite cache of the microgrid's component/connection topology from
// a live RPC call, list that cache for offline inspection, or reflect
// directly against the gRPC endpoint like grpcurl would.
//
// Flag layout and the -version/-log-level conventions follow the teacher's
// cmd/autonomyctl/main.go; the subcommands themselves are new.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/config"
	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/microgrid"
)

const (
	appName    = "gridctl"
	appVersion = "0.1.0"
)

var (
	configPath = flag.String("config", "", "Path to gridcored's JSON configuration (for the -target default)")
	target     = flag.String("target", "", "microgrid gRPC target, overrides config")
	dbPath     = flag.String("db-path", "/var/lib/gridctl/cache.db", "Local SQLite topology cache path")
	logLevel   = flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	timeout    = flag.Duration("timeout", 10*time.Second, "RPC timeout")
	version    = flag.Bool("version", false, "Show version information")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <command>\n\ncommands:\n", appName)
	fmt.Fprintln(os.Stderr, "  refresh   fetch components/connections and store them in the local cache")
	fmt.Fprintln(os.Stderr, "  inspect   list the cached components/connections")
	fmt.Fprintln(os.Stderr, "  reflect   invoke ListComponents via gRPC reflection, like grpcurl")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) != 1 {
		usage()
		os.Exit(2)
	}

	logger := logx.NewLogger(*logLevel, appName)

	resolvedTarget := *target
	if resolvedTarget == "" && *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: load config: %v\n", appName, err)
			os.Exit(1)
		}
		resolvedTarget = cfg.MicrogridTarget
	}
	if resolvedTarget == "" {
		resolvedTarget = "localhost:50051"
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var err error
	switch args[0] {
	case "refresh":
		err = runRefresh(ctx, resolvedTarget, logger)
	case "inspect":
		err = runInspect()
	case "reflect":
		err = runReflect(ctx, resolvedTarget, logger)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func runRefresh(ctx context.Context, target string, logger *logx.Logger) error {
	client, err := microgrid.NewClient(ctx, target, *timeout, logger)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer client.Close()

	components, err := client.Components(ctx)
	if err != nil {
		return fmt.Errorf("list components: %w", err)
	}
	connections, err := client.Connections(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}

	cache, err := openCache(*dbPath)
	if err != nil {
		return err
	}
	defer cache.Close()

	now := time.Now().UTC()
	cachedComponents := make([]cachedComponent, len(components))
	for i, c := range components {
		cachedComponents[i] = cachedComponent{ID: c.ID, Category: categoryName(c.Category), SeenAt: now}
	}
	if err := cache.StoreComponents(cachedComponents); err != nil {
		return fmt.Errorf("store components: %w", err)
	}

	cachedConnections := make([]cachedConnection, len(connections))
	for i, c := range connections {
		cachedConnections[i] = cachedConnection{Start: c.Start, End: c.End, SeenAt: now}
	}
	if err := cache.StoreConnections(cachedConnections); err != nil {
		return fmt.Errorf("store connections: %w", err)
	}

	fmt.Printf("cached %d components, %d connections from %s\n", len(components), len(connections), target)
	return nil
}

func runInspect() error {
	cache, err := openCache(*dbPath)
	if err != nil {
		return err
	}
	defer cache.Close()

	components, err := cache.Components()
	if err != nil {
		return fmt.Errorf("read cached components: %w", err)
	}
	connections, err := cache.Connections()
	if err != nil {
		return fmt.Errorf("read cached connections: %w", err)
	}

	fmt.Println("components:")
	for _, c := range components {
		fmt.Printf("  %d\t%s\t(seen %s)\n", c.ID, c.Category, c.SeenAt.Format(time.RFC3339))
	}
	fmt.Println("connections:")
	for _, c := range connections {
		fmt.Printf("  %d -> %d\t(seen %s)\n", c.Start, c.End, c.SeenAt.Format(time.RFC3339))
	}
	return nil
}

func runReflect(ctx context.Context, target string, logger *logx.Logger) error {
	out, err := reflectListComponents(ctx, target, *timeout, logger)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func categoryName(c microgrid.Category) string {
	switch c {
	case microgrid.CategoryGrid:
		return "grid"
	case microgrid.CategoryMeter:
		return "meter"
	case microgrid.CategoryBattery:
		return "battery"
	case microgrid.CategoryInverter:
		return "inverter"
	case microgrid.CategoryEVCharger:
		return "ev_charger"
	case microgrid.CategorySensor:
		return "sensor"
	default:
		return "unspecified"
	}
}
