// Command ageing-sim drives a discrete-event simulation of a self-organizing,
// prefix-routed peer network: nodes randomly join, leave and rejoin, sections
// split and merge as they grow and shrink, and elders age and relocate.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/Bren2010/ageingsim/db"
	"github.com/Bren2010/ageingsim/db/memory"
	"github.com/Bren2010/ageingsim/network"
	"github.com/Bren2010/ageingsim/network/node"
	"github.com/Bren2010/ageingsim/network/params"
	"github.com/Bren2010/ageingsim/stats"
)

var (
	Version = "dev"

	configFile = flag.String("config", "", "Location of an optional YAML config file overriding the flags below.")

	initAge          = flag.Uint("init-age", 4, "Initial age of newly joining peers.")
	splitStrategy    = flag.String("split", "complete", "Split strategy: always or complete.")
	maxYoung         = flag.Int("max-young", 1, "Max young elders allowed per section; 0 disables the cap.")
	iterations       = flag.Int("iterations", 100000, "Number of churn events to simulate.")
	summaryIntervals = flag.Int("summary-intervals", 10000, "Print a summary every this many iterations.")
	pAdd             = flag.Int("p-add", 90, "Probability (0-100) that a step adds a node.")
	pDrop            = flag.Int("p-drop", 7, "Probability (0-100) that a step drops a node.")
	dropDist         = flag.String("drop-dist", "exp", "Drop probability distribution by age: exp or rev.")
	ageInc           = flag.Bool("age-inc", false, "Increment node ages on merges and splits.")
	seed             = flag.Int64("seed", 0, "Seed for the pseudo-random generator; 0 picks a random seed.")

	structureOutputFile = flag.String("structure-output-file", "", "Optional file to write the per-step network structure to.")
	metricsAddr         = flag.String("metrics-addr", "", "Optional address to serve prometheus metrics/pprof on, e.g. :9090.")
	leveldbDir          = flag.String("leveldb-dir", "", "Optional directory for a leveldb-backed snapshot store; defaults to in-memory.")
)

func buildParams() (params.Params, error) {
	p := params.Defaults()
	p.InitAge = uint8(*initAge)

	strategy, err := params.ParseSplitStrategy(*splitStrategy)
	if err != nil {
		return p, err
	}
	p.SplitStrategy = strategy

	dist, err := node.ParseDropDist(*dropDist)
	if err != nil {
		return p, err
	}
	p.DropDist = dist

	p.MaxYoung = *maxYoung
	p.Iterations = *iterations
	p.SummaryIntervals = *summaryIntervals
	p.PAdd = *pAdd
	p.PDrop = *pDrop
	p.AgeInc = *ageInc
	p.StructureOutputFile = *structureOutputFile

	if *configFile != "" {
		cfg, err := ReadConfig(*configFile)
		if err != nil {
			return p, fmt.Errorf("loading config file: %w", err)
		}
		if err := cfg.Apply(&p); err != nil {
			return p, err
		}
		if cfg.MetricsAddr != "" {
			*metricsAddr = cfg.MetricsAddr
		}
		if cfg.LevelDBDir != "" {
			*leveldbDir = cfg.LevelDBDir
		}
	}

	return p, p.Validate()
}

// randomEvent generates one random churn event: a join, a drop or a rejoin,
// chosen according to p.PAdd and p.PDrop.
func randomEvent(net *network.Network, p *params.Params) {
	x := net.Rand().Intn(100)
	switch {
	case x < p.PAdd:
		net.AddRandomNode()
	case x < p.PAdd+p.PDrop:
		net.DropRandomNode()
	default:
		net.RejoinRandomNode()
	}
}

func printSummary(net *network.Network) {
	snaps := net.Output().Snapshots
	if len(snaps) == 0 {
		fmt.Println("Network state: no snapshot recorded yet")
		return
	}
	last := snaps[len(snaps)-1]
	fmt.Printf("Network state: %d nodes across %d sections (%d complete)\n",
		last.TotalNodes, last.SectionCount, last.CompleteSectionCount)

	sizes := make([]int, len(snaps))
	for i, s := range snaps {
		sizes[i] = s.TotalNodes
	}
	fmt.Println(stats.Table("Network size over time", map[string]stats.Stats{
		"size": stats.New(sizes),
	}, []string{"size"}))
}

// printDist prints a distribution keyed by age in ascending order, printing
// zero for any age with no entries until the last recorded age is reached.
func printDist[V int | uint64](dist map[uint8]V) {
	remaining := make(map[uint8]V, len(dist))
	for k, v := range dist {
		remaining[k] = v
	}
	for age := uint8(1); len(remaining) > 0; age++ {
		v := remaining[age]
		delete(remaining, age)
		fmt.Printf("%d\t%v\n", age, v)
		if age == 255 {
			break
		}
	}
}

func writeStructureFile(path string, store db.SnapshotStore) error {
	records, err := store.List()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, r := range records {
		if _, err := fmt.Fprintf(f, "%d %d %d %d\n", r.Step, r.Snapshot.TotalNodes, r.Snapshot.SectionCount, r.Snapshot.CompleteSectionCount); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	flag.Parse()

	p, err := buildParams()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	seedVal := *seed
	if seedVal == 0 {
		seedVal = time.Now().UnixNano()
	}
	log.Printf("Using random seed: %d", seedVal)
	rng := rand.New(rand.NewSource(seedVal))

	net := network.New(&p, rng)

	var store db.SnapshotStore
	if *leveldbDir != "" {
		store, err = db.NewLDBSnapshotStore(*leveldbDir)
		if err != nil {
			log.Fatalf("failed to open leveldb snapshot store: %v", err)
		}
	} else {
		store = memory.New()
	}
	defer store.Close()

	if *metricsAddr != "" {
		go startMetricsServer(*metricsAddr, net)
	}

	for i := 0; i < p.Iterations; i++ {
		if i%p.SummaryIntervals == 0 {
			log.Printf("Iteration %d...", i)
			printSummary(net)
			updateMetrics(net.Output())
		}

		randomEvent(net, &p)
		if err := net.ProcessEvents(); err != nil {
			log.Fatalf("iteration %d: %v", i, err)
		}

		snaps := net.Output().Snapshots
		if len(snaps) > 0 {
			if err := store.Append(i, snaps[len(snaps)-1]); err != nil {
				log.Fatalf("failed to record snapshot: %v", err)
			}
		}
	}

	log.Printf("...Iteration %d", p.Iterations-1)
	printSummary(net)
	log.Printf("Params: %+v", p)

	fmt.Println("\nAge distribution:")
	printDist(net.AgeDistribution())

	fmt.Println("\nDrops distribution by age:")
	printDist(net.Output().DropsByAge)

	if p.StructureOutputFile != "" {
		if err := writeStructureFile(p.StructureOutputFile, store); err != nil {
			log.Fatalf("failed to write structure output file: %v", err)
		}
	}
}
