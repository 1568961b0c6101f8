package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type prometheusObserver struct {
	readCounter   prometheus.Counter
	writeCounter  prometheus.Counter
	deleteCounter prometheus.Counter
}

var (
	readCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flagstore_reads_total",
		Help: "Total number of flag reads served from the store",
	})
	writeCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flagstore_writes_total",
		Help: "Total number of flag upserts",
	})
	deleteCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flagstore_deletes_total",
		Help: "Total number of flag deletions",
	})
)

func NewPrometheusObserver() StoreObserver {
	return &prometheusObserver{
		readCounter:   readCounter,
		writeCounter:  writeCounter,
		deleteCounter: deleteCounter,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (p *prometheusObserver) RecordRead() {
	p.readCounter.Inc()
}
func (p *prometheusObserver) RecordWrite() {
	p.writeCounter.Inc()
}
func (p *prometheusObserver) RecordDelete() {
	p.deleteCounter.Inc()
}
