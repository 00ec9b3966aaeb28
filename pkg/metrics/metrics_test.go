package metrics_test

import (
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/papercomputeco/engram/pkg/metrics"
)

var _ = Describe("Metrics", func() {
	It("registers with the default registry", func() {
		families, err := prometheus.DefaultGatherer.Gather()
		Expect(err).NotTo(HaveOccurred())

		var names []string
		for _, f := range families {
			names = append(names, f.GetName())
		}
		Expect(names).To(ContainElement("engram_active_sessions"))
	})

	It("labels memory writes by status", func() {
		metrics.ObserveMemoryWrite(metrics.KindFact, nil)
		metrics.ObserveMemoryWrite(metrics.KindFact, errors.New("boom"))

		expected := `
# HELP engram_memory_writes_total Total memory records written, by kind and status.
# TYPE engram_memory_writes_total counter
engram_memory_writes_total{kind="fact",status="error"} 1
engram_memory_writes_total{kind="fact",status="ok"} 1
`
		Expect(testutil.GatherAndCompare(prometheus.DefaultGatherer,
			strings.NewReader(expected), "engram_memory_writes_total")).To(Succeed())
	})

	It("accumulates compaction counts", func() {
		metrics.ObserveCompaction(metrics.OutcomeCompleted, time.Second, 16, 3)

		expected := `
# HELP engram_compaction_turns_written_total Total turns flushed to memory by compaction.
# TYPE engram_compaction_turns_written_total counter
engram_compaction_turns_written_total 16
`
		Expect(testutil.GatherAndCompare(prometheus.DefaultGatherer,
			strings.NewReader(expected), "engram_compaction_turns_written_total")).To(Succeed())

		n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "engram_compactions_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})
})
