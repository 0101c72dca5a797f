package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "winsync"
	subsystem = "engine"
)

var (
	batchesCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "batches_committed_total", Help: "Update batches handed to the transport.",
	}, []string{"list"})

	operationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "operations_emitted_total", Help: "Remote operations committed, by opcode.",
	}, []string{"list", "op"})

	staleAcks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "stale_acks_total", Help: "Acknowledgments ignored by update id fencing.",
	}, []string{"list"})

	failedCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "failed_cycles_total", Help: "Synchronization cycles abandoned before commit.",
	}, []string{"list", "reason"})

	liveKeys = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "live_keys", Help: "Keys currently tracked by the key registry.",
	}, []string{"list"})
)
