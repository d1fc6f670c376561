package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bren2010/ageingsim/network"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "A metric with a constant '1' value labeled by version and goversion.",
		},
		[]string{"version", "goversion"},
	)
	churnTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "churn_events_total",
			Help: "Cumulative churn events processed so far, labeled by kind.",
		},
		[]string{"kind"},
	)
	sectionCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "section_count",
		Help: "Current number of sections in the network.",
	})
	completeSectionCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "complete_section_count",
		Help: "Current number of complete sections in the network.",
	})
	nodeCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "node_count",
		Help: "Current total number of nodes across every section.",
	})
)

func init() {
	prometheus.MustRegister(buildInfo, churnTotal, sectionCount, completeSectionCount, nodeCount)
	buildInfo.WithLabelValues(Version, runtime.Version()).Set(1)
}

// updateMetrics refreshes the prometheus gauges from the network's latest
// output; it's called once per summary interval rather than every step,
// since the gauges only need to be roughly current.
func updateMetrics(out network.Output) {
	churnTotal.WithLabelValues("add").Set(float64(out.Adds))
	churnTotal.WithLabelValues("drop").Set(float64(out.Drops))
	churnTotal.WithLabelValues("rejoin").Set(float64(out.Rejoins))
	churnTotal.WithLabelValues("rejected").Set(float64(out.Rejections))
	churnTotal.WithLabelValues("relocation").Set(float64(out.Relocations))

	if len(out.Snapshots) == 0 {
		return
	}
	last := out.Snapshots[len(out.Snapshots)-1]
	nodeCount.Set(float64(last.TotalNodes))
	sectionCount.Set(float64(last.SectionCount))
	completeSectionCount.Set(float64(last.CompleteSectionCount))
}

// startMetricsServer serves prometheus metrics, pprof profiles, and a
// snapshot of the network's current structure, for inspecting a long-running
// simulation without waiting for it to finish.
func startMetricsServer(addr string, net *network.Network) {
	r := mux.NewRouter()
	r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintln(w, "Hi, I'm the ageing-sim metrics and debugging server!")
	})
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/snapshot", func(w http.ResponseWriter, req *http.Request) {
		out := net.Output()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}
	log.Printf("Starting metrics server at: %v", addr)
	log.Println(srv.ListenAndServe())
}
