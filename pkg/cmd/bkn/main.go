package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
	"github.com/gilchrisn/readership-communities/pkg/export"
	"github.com/gilchrisn/readership-communities/pkg/readership"
)

type options struct {
	karate       bool
	interactions string
	events       string
	labels       string
	edges        string
	configFile   string
	k            int
	trials       int
	seed         int64
	verbose      bool
	out          string
	top          int
}

func main() {
	var opts options
	flag.BoolVar(&opts.karate, "karate", false, "run on Zachary's karate club")
	flag.StringVar(&opts.interactions, "interactions", "", "JSON object mapping each person to the items they interacted with")
	flag.StringVar(&opts.events, "events", "", "JSON array of lending events; borrowers are grouped by member")
	flag.StringVar(&opts.labels, "labels", "", "JSON object mapping item ids to display names")
	flag.StringVar(&opts.edges, "edges", "", "edge list file with lines \"u v [weight]\"")
	flag.StringVar(&opts.configFile, "config", "", "YAML/JSON engine configuration file")
	flag.IntVar(&opts.k, "k", 2, "number of communities")
	flag.IntVar(&opts.trials, "trials", 5, "number of independent EM trials")
	flag.Int64Var(&opts.seed, "seed", -1, "random seed; negative draws one")
	flag.BoolVar(&opts.verbose, "verbose", false, "log degenerate updates and every iteration")
	flag.StringVar(&opts.out, "out", "communities", "output file prefix")
	flag.IntVar(&opts.top, "top", 10, "vertices listed per community")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatalf("bkn: %v", err)
	}
}

func run(ctx context.Context, opts options) error {
	g, names, err := loadGraph(opts)
	if err != nil {
		return err
	}

	config := bkn.NewConfig()
	if opts.configFile != "" {
		if err := config.LoadFromFile(opts.configFile); err != nil {
			return err
		}
	}
	// Flags given on the command line take precedence over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "k":
			config.Set("algorithm.num_communities", opts.k)
		case "trials":
			config.Set("algorithm.num_trials", opts.trials)
		case "seed":
			config.Set("algorithm.random_seed", opts.seed)
		case "verbose":
			config.Set("logging.verbose", opts.verbose)
			if opts.verbose {
				config.Set("logging.level", "debug")
			}
		}
	})
	if opts.configFile == "" {
		config.Set("algorithm.num_communities", opts.k)
		config.Set("algorithm.num_trials", opts.trials)
	}

	summary := readership.Summarize(g, names, opts.top)
	fmt.Println("=== Graph ===")
	fmt.Printf("Vertices: %d\n", summary.NumVertices)
	fmt.Printf("Unique edges: %d\n", summary.UniqueEdges)
	fmt.Printf("Edges with multiplicity: %d\n", summary.TotalWeight)
	for _, v := range summary.TopVertices {
		fmt.Printf("  %s: %d neighbors\n", vertexName(v.Vertex, names), v.Neighbors)
	}

	engine, err := bkn.NewEngine(config)
	if err != nil {
		return err
	}
	result, err := engine.Detect(ctx, g)
	if err != nil {
		return err
	}

	displayResults(result)
	for _, c := range export.CommunitySummaries(g, result.Labels, names, opts.top) {
		fmt.Printf("\nCommunity %d: %d edges, %d vertices, mean share %.3f (sd %.3f)\n",
			c.Community, c.Edges, c.Vertices, c.MeanShare, c.StdShare)
		for _, m := range c.Members {
			fmt.Printf("  %-40s %5.1f%%  degree %.0f\n", vertexName(m.Vertex, names), m.Share*100, m.Degree)
		}
	}

	gdfPath := opts.out + ".gdf"
	if err := export.WriteGDFFile(gdfPath, g, names, result.Labels); err != nil {
		return err
	}
	sharesPath := opts.out + "_community-percents.txt"
	file, err := os.Create(sharesPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", sharesPath, err)
	}
	defer file.Close()
	if err := export.WriteCommunityShares(file, result.Labels.VertexShares()); err != nil {
		return fmt.Errorf("failed to write %s: %w", sharesPath, err)
	}

	fmt.Printf("\nWrote %s and %s\n", gdfPath, sharesPath)
	return file.Close()
}

// loadGraph builds the input graph from exactly one of the source flags.
func loadGraph(opts options) (*bkn.Graph, []string, error) {
	sources := 0
	for _, set := range []bool{opts.karate, opts.interactions != "", opts.events != "", opts.edges != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, nil, errors.New("exactly one of -karate, -interactions, -events or -edges is required")
	}

	switch {
	case opts.karate:
		g, err := readership.KarateClubGraph()
		return g, nil, err

	case opts.edges != "":
		file, err := os.Open(opts.edges)
		if err != nil {
			return nil, nil, err
		}
		defer file.Close()
		g, err := readership.ReadEdgeList(file)
		return g, nil, err
	}

	var people map[string][]string
	if opts.interactions != "" {
		file, err := os.Open(opts.interactions)
		if err != nil {
			return nil, nil, err
		}
		defer file.Close()
		if people, err = readership.ReadInteractions(file); err != nil {
			return nil, nil, err
		}
	} else {
		file, err := os.Open(opts.events)
		if err != nil {
			return nil, nil, err
		}
		defer file.Close()
		events, err := readership.ReadEvents(file)
		if err != nil {
			return nil, nil, err
		}
		people = readership.BorrowersToItems(events, nil)
	}

	catalog, g, err := readership.BuildCoInteraction(people)
	if err != nil {
		return nil, nil, err
	}
	if opts.labels != "" {
		file, err := os.Open(opts.labels)
		if err != nil {
			return nil, nil, err
		}
		defer file.Close()
		labels, err := readership.ReadItemLabels(file)
		if err != nil {
			return nil, nil, err
		}
		catalog = catalog.Labelled(labels)
	}
	return g, catalog.Items, nil
}

func vertexName(i int, names []string) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("vertex %d", i)
}

func displayResults(result *bkn.Result) {
	fmt.Println("\n=== Results ===")
	fmt.Printf("Communities: %d\n", result.NumCommunities)
	fmt.Printf("Best trial: %d\n", result.BestTrial)
	fmt.Printf("Max log-likelihood: %.6f\n", result.LogLikelihood)
	fmt.Printf("Seed: %d\n", result.Seed)
	fmt.Printf("Runtime: %d ms\n", result.RuntimeMS)

	for _, t := range result.Trials {
		fmt.Printf("  Trial %d: %-13s iterations %4d  log-likelihood %.6f  agreement %.3f\n",
			t.Trial, t.Status, t.Iterations, t.LogLikelihood, t.Agreement)
	}
	fmt.Printf("Edges per community: %v\n", result.Labels.Counts())
}
