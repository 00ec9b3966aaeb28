// Package metrics holds engram's prometheus collectors. They register with
// the default registry on import and are served by "engram serve" at
// /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "engram"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Record kinds for memory writes.
const (
	KindTurn = "turn"
	KindFact = "fact"
)

// Compaction outcomes.
const (
	OutcomeCompleted     = "completed"
	OutcomeExtractFailed = "extract_failed"
	OutcomeWriteFailed   = "write_failed"
)

var (
	memoryWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_writes_total",
			Help:      "Total memory records written, by kind and status.",
		},
		[]string{"kind", "status"},
	)
	memoryRetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_retrievals_total",
			Help:      "Total memory retrievals, by status.",
		},
		[]string{"status"},
	)
	memoryRetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_retrieval_duration_seconds",
			Help:      "Memory retrieval latency in seconds, embedding included.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
	compactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions_total",
			Help:      "Total compaction runs, by outcome.",
		},
		[]string{"outcome"},
	)
	compactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compaction_duration_seconds",
			Help:      "Compaction latency in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
	compactionTurnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compaction_turns_written_total",
			Help:      "Total turns flushed to memory by compaction.",
		},
	)
	compactionFactsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compaction_facts_extracted_total",
			Help:      "Total facts extracted and stored by compaction.",
		},
	)
	extractionParseFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_parse_failures_total",
			Help:      "Total extractor replies that could not be parsed.",
		},
	)
	agentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_requests_total",
			Help:      "Total agent messages processed, by status.",
		},
		[]string{"status"},
	)
	agentToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_tool_calls_total",
			Help:      "Total tool invocations, by tool and status.",
		},
		[]string{"tool", "status"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in the registry.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		memoryWritesTotal,
		memoryRetrievalsTotal,
		memoryRetrievalDuration,
		compactionsTotal,
		compactionDuration,
		compactionTurnsTotal,
		compactionFactsTotal,
		extractionParseFailuresTotal,
		agentRequestsTotal,
		agentToolCallsTotal,
		activeSessions,
	)
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// ObserveMemoryWrite counts one turn or fact write.
func ObserveMemoryWrite(kind string, err error) {
	memoryWritesTotal.WithLabelValues(kind, status(err)).Inc()
}

// ObserveRetrieval counts one retrieval and its latency.
func ObserveRetrieval(elapsed time.Duration, err error) {
	memoryRetrievalsTotal.WithLabelValues(status(err)).Inc()
	memoryRetrievalDuration.Observe(elapsed.Seconds())
}

// ObserveCompaction records one triggered compaction run.
func ObserveCompaction(outcome string, elapsed time.Duration, turns, facts int) {
	compactionsTotal.WithLabelValues(outcome).Inc()
	compactionDuration.Observe(elapsed.Seconds())
	compactionTurnsTotal.Add(float64(turns))
	compactionFactsTotal.Add(float64(facts))
}

// ObserveParseFailure counts one unparseable extractor reply.
func ObserveParseFailure() {
	extractionParseFailuresTotal.Inc()
}

// ObserveAgentRequest counts one processed user message.
func ObserveAgentRequest(err error) {
	agentRequestsTotal.WithLabelValues(status(err)).Inc()
}

// ObserveToolCall counts one tool invocation.
func ObserveToolCall(tool string, failed bool) {
	s := StatusOK
	if failed {
		s = StatusError
	}
	agentToolCallsTotal.WithLabelValues(tool, s).Inc()
}

// SetActiveSessions reports the session registry size.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
