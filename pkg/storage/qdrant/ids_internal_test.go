package qdrant

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("idGenerator", func() {
	It("is strictly increasing within one millisecond", func() {
		g := newIDGenerator()
		fixed := time.UnixMilli(1_700_000_000_000)
		g.now = func() time.Time { return fixed }

		prev := g.next()
		for range 1000 {
			id := g.next()
			Expect(id).To(BeNumerically(">", prev))
			prev = id
		}
	})

	It("survives the clock moving backwards", func() {
		g := newIDGenerator()
		g.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
		first := g.next()

		g.now = func() time.Time { return time.UnixMilli(1_600_000_000_000) }
		Expect(g.next()).To(BeNumerically(">", first))
	})

	It("produces positive ids", func() {
		Expect(newIDGenerator().next()).To(BeNumerically(">", 0))
	})
})

var _ = Describe("splitTarget", func() {
	It("defaults the port", func() {
		host, port, err := splitTarget("qdrant.local")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("qdrant.local"))
		Expect(port).To(Equal(DefaultPort))
	})

	It("parses host and port", func() {
		host, port, err := splitTarget("localhost:7000")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("localhost"))
		Expect(port).To(Equal(7000))
	})

	It("rejects a non-numeric port", func() {
		_, _, err := splitTarget("localhost:grpc")
		Expect(err).To(HaveOccurred())
	})
})
