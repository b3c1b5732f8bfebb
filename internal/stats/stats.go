package stats

import (
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"sync"
	"time"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	Add(name string, delta int64)
	RegisterMetric(name string)
}

// StatsUpdater serializes counter updates through a single goroutine and
// exposes them on GET /debug/vars.
type StatsUpdater struct {
	log        *log.Logger
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
	done       chan struct{}
	stopOnce   sync.Once
}

type metricsUpdateReq struct {
	name  string
	value int64
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(su.Snapshot())
}

func NewStatsUpdater(mux *http.ServeMux, logger *log.Logger) *StatsUpdater {
	su := &StatsUpdater{
		log:        logger,
		updateChan: make(chan *metricsUpdateReq, 512),
		done:       make(chan struct{}),
		vars:       new(expvar.Map),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	return su
}

// Snapshot returns the current value of every metric.
func (su *StatsUpdater) Snapshot() map[string]any {
	data := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		data[kv.Key] = value
	})

	return data
}

func (su *StatsUpdater) updateMetrics() {
	for {
		select {
		case req := <-su.updateChan:
			metric, ok := su.vars.Get(req.name).(*expvar.Int)
			if !ok {
				su.log.Printf("stats: unknown metric %q", req.name)
				continue
			}

			metric.Add(req.value)
		case <-su.done:
			return
		}
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.Add(name, 1)
}

func (su *StatsUpdater) Decr(name string) {
	su.Add(name, -1)
}

// Add queues a counter update. Updates after Stop are dropped.
func (su *StatsUpdater) Add(name string, delta int64) {
	select {
	case su.updateChan <- &metricsUpdateReq{name: name, value: delta}:
	case <-su.done:
	}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() {
		close(su.done)
	})
}
