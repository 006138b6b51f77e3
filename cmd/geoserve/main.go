package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-geoserve/internal/config"
	"github.com/joeblew999/plat-geoserve/internal/coords"
	"github.com/joeblew999/plat-geoserve/internal/logger"
	"github.com/joeblew999/plat-geoserve/internal/overlay"
	"github.com/joeblew999/plat-geoserve/internal/server"
)

// Options defines the CLI flags and env vars for geoserve.
// Flags: --config, --host, --port
// Env vars: SERVICE_CONFIG, SERVICE_HOST, SERVICE_PORT
// Host and port override the config file when set.
type Options struct {
	Config string `doc:"Path to geoserve.yaml (default: ./geoserve.yaml or ./configs/geoserve.yaml)"`
	Host   string `doc:"Host to bind to"`
	Port   int    `doc:"Port to listen on" short:"p"`
}

func loadConfig(opts *Options) *config.Config {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg
}

func newServer(opts *Options) *server.Server {
	srv, err := server.New(loadConfig(opts))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func parseCoordinate(args []string) coords.Coordinate {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil || lat < -90 || lat > 90 {
		fmt.Fprintf(os.Stderr, "Invalid latitude %q\n", args[0])
		os.Exit(1)
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid longitude %q\n", args[1])
		os.Exit(1)
	}
	return coords.Normalize(lat, lon)
}

// stderrSurface reports overlay lifecycle on stderr.
type stderrSurface struct{}

func (stderrSurface) OnAttach(l *overlay.Layer) {
	fmt.Fprintf(os.Stderr, "attached %s (%s)\n", l.Descriptor().Title, l.Style().Color)
}

func (stderrSurface) OnDetach(l *overlay.Layer) {
	fmt.Fprintf(os.Stderr, "detached %s\n", l.Descriptor().Title)
}

func (stderrSurface) OnGeometry(l *overlay.Layer) {
	fmt.Fprintf(os.Stderr, "loaded %d features\n", len(l.Geometry().Features))
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			cfg := loadConfig(opts)
			var err error
			if srv, err = server.New(cfg); err != nil {
				log.Fatalf("Server error: %v", err)
			}
			if err := srv.Start(ctx); err != nil {
				log.Fatalf("Server error: %v", err)
			}

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			displayHost := cfg.Server.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, cfg.Server.Port)

			fmt.Println()
			fmt.Printf("plat-geoserve API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Cache:   %s\n", cfg.Cache.Backend)
			fmt.Println()
			fmt.Printf("  Stream:  %s/api/v1/stream\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			cancel()
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "geoserve"
	cli.Root().Short = "Resolve addresses and coordinates into places, regions and map overlays"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Root().AddCommand(&cobra.Command{
		Use:   "geocode <address>",
		Short: "Geocode an address and resolve places and regions around it",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			svc := srv.Service()
			svc.LookupAddress(cmd.Context(), args[0])
			printJSON(svc.Snapshot())
		}),
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "places <lat> <lon>",
		Short: "List places near a coordinate",
		Args:  cobra.ExactArgs(2),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			printJSON(srv.Service().Places.Lookup(cmd.Context(), parseCoordinate(args)))
		}),
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "regions <lat> <lon>",
		Short: "List the regions enclosing a coordinate, per configured region type",
		Args:  cobra.ExactArgs(2),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			svc := srv.Service()
			svc.LookupCoordinates(cmd.Context(), parseCoordinate(args))
			printJSON(svc.Snapshot().Regions)
		}),
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "overlays",
		Short: "List the overlay catalog with assigned colours",
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			set := srv.Service().Catalog.Lookup(cmd.Context())
			if set == nil {
				fmt.Fprintln(os.Stderr, "Overlay catalog unavailable")
				os.Exit(1)
			}
			printJSON(set.Infos())
		}),
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "overlay <name-or-title>",
		Short: "Fetch one overlay's geometry and print it as GeoJSON",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			set := srv.Service().Catalog.Lookup(cmd.Context())
			l, ok := findLayer(set, args[0])
			if !ok {
				fmt.Fprintf(os.Stderr, "Overlay %q not found\n", args[0])
				os.Exit(1)
			}
			surface := stderrSurface{}
			<-l.Attach(cmd.Context(), surface)
			defer l.Detach(surface)
			if !l.IsLoaded() {
				fmt.Fprintf(os.Stderr, "Overlay %q geometry unavailable\n", args[0])
				os.Exit(1)
			}
			out, err := l.Geometry().MarshalJSON()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling geometry: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(out))
		}),
	})

	cli.Run()
}

func findLayer(set *overlay.Set, key string) (*overlay.Layer, bool) {
	for _, l := range set.Layers() {
		if l.Descriptor().Name == key {
			return l, true
		}
	}
	return set.Get(key)
}
