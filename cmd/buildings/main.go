package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-buildings/internal/server"
	"github.com/joeblew999/plat-buildings/internal/service"
	"github.com/joeblew999/plat-buildings/internal/storage"
)

// Options defines all CLI flags and env vars for the explorer server.
// Flags: --host, --port, --data-dir, --web-dir, --bucket-url
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, SERVICE_BUCKET_URL
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir   string `doc:"Directory for shard cache and uploads" default:".data"`
	WebDir    string `doc:"Path to web/ directory" default:"web"`
	BucketURL string `doc:"Shard bucket root URL (default: public Open Buildings v3 bucket)"`
}

func newServer(opts *Options) *server.Server {
	return server.New(server.Config{
		Host:      opts.Host,
		Port:      fmt.Sprintf("%d", opts.Port),
		DataDir:   opts.DataDir,
		WebDir:    opts.WebDir,
		BucketURL: opts.BucketURL,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv := newServer(opts)

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-buildings server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
	})

	cli.Root().Use = "buildings"
	cli.Root().Short = "Open Buildings explorer for regions, shards, and footprints"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
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

	// fetch subcommand: run the pipeline headless for scripting
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run the covering/download/filter pipeline for a WKT region",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			wktFile, _ := cmd.Flags().GetString("wkt-file")
			outPath, _ := cmd.Flags().GetString("output")

			if wktFile == "" {
				fmt.Fprintln(os.Stderr, "A --wkt-file with the region polygon is required")
				os.Exit(1)
			}
			if err := runFetch(opts, wktFile, outPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	fetchCmd.Flags().StringP("wkt-file", "f", "", "File containing the region as WKT POLYGON/MULTIPOLYGON")
	fetchCmd.Flags().StringP("output", "o", "filtered_buildings.geojson", "Output GeoJSON path")
	cli.Root().AddCommand(fetchCmd)

	cli.Run()
}

// runFetch executes the full pipeline without a server and writes the
// filtered buildings as GeoJSON.
func runFetch(opts *Options, wktFile, outPath string) error {
	raw, err := os.ReadFile(wktFile)
	if err != nil {
		return err
	}

	region, err := service.ParseRegionWKT(strings.TrimSpace(string(raw)))
	if err != nil {
		return err
	}

	ex := service.NewExplorer(storage.NewHTTPStore(opts.BucketURL), opts.DataDir)
	result, err := ex.Run(context.Background(), region, func(progress int, status string) {
		fmt.Printf("[%3d%%] %s\n", progress, status)
	})
	if err != nil {
		return err
	}

	data, err := json.Marshal(result.FeatureCollection())
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return err
	}

	fmt.Printf("%d buildings (mean confidence %.2f) written to %s\n",
		result.Count, result.MeanConfidence, outPath)
	return nil
}
