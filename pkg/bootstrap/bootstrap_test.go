package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/bootstrap"
	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/eventstream/nop"
	"github.com/papercomputeco/engram/pkg/storage/inmemory"
	"github.com/papercomputeco/engram/pkg/storage/sqlite"
	"github.com/papercomputeco/engram/pkg/tools"
)

var _ = Describe("Bootstrap", func() {
	var (
		ctx context.Context
		dir string
		cfg *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		cfg = config.NewDefaultConfig()
		cfg.Storage.Driver = bootstrap.DriverInMemory
		cfg.Embedding.Dimensions = 8
	})

	Describe("ResolveSQLitePath", func() {
		It("prefers an explicit override", func() {
			Expect(bootstrap.ResolveSQLitePath("/tmp/x.sqlite", dir)).To(Equal("/tmp/x.sqlite"))
		})

		It("honors ENGRAM_SQLITE", func() {
			GinkgoT().Setenv("ENGRAM_SQLITE", "/tmp/env.sqlite")
			Expect(bootstrap.ResolveSQLitePath("", dir)).To(Equal("/tmp/env.sqlite"))
		})

		It("falls back to the config directory", func() {
			GinkgoT().Setenv("ENGRAM_SQLITE", "")
			Expect(bootstrap.ResolveSQLitePath("", dir)).To(Equal(filepath.Join(dir, bootstrap.SQLiteFileName)))
		})
	})

	Describe("NewDriver", func() {
		It("builds the in-memory driver", func() {
			d, err := bootstrap.NewDriver(ctx, cfg.Storage, 8, dir, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(BeAssignableToTypeOf(&inmemory.Driver{}))
			Expect(d.Close()).To(Succeed())
		})

		It("builds the sqlite driver in the config directory", func() {
			GinkgoT().Setenv("ENGRAM_SQLITE", "")
			cfg.Storage.Driver = bootstrap.DriverSQLite
			d, err := bootstrap.NewDriver(ctx, cfg.Storage, 8, dir, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(BeAssignableToTypeOf(&sqlite.Driver{}))
			Expect(d.Close()).To(Succeed())

			_, err = os.Stat(filepath.Join(dir, bootstrap.SQLiteFileName))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects unknown drivers", func() {
			cfg.Storage.Driver = "chroma"
			_, err := bootstrap.NewDriver(ctx, cfg.Storage, 8, dir, nil)
			Expect(err).To(MatchError(ContainSubstring("unsupported storage driver")))
		})
	})

	Describe("Open", func() {
		It("wires the memory layer only", func() {
			rt, err := bootstrap.OpenMemory(ctx, cfg, dir, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(rt.Store).NotTo(BeNil())
			Expect(rt.Composer).NotTo(BeNil())
			Expect(rt.Agent).To(BeNil())
			Expect(rt.Close()).To(Succeed())
		})

		It("wires the agent and its tools", func() {
			rt, err := bootstrap.Open(ctx, cfg, dir, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(rt.Close)

			Expect(rt.Agent).NotTo(BeNil())
			Expect(rt.Compactor.RetainWindow()).To(Equal(5))
			Expect(rt.Publisher).To(BeAssignableToTypeOf(&nop.Publisher{}))
			Expect(rt.Tools.Names()).To(ContainElements(
				tools.RecallMemoryToolName,
				tools.RememberFactToolName,
				tools.AddTaskToolName,
			))
		})

		It("fails on an unknown completion provider", func() {
			cfg.Completion.Provider = "carrier-pigeon"
			_, err := bootstrap.Open(ctx, cfg, dir, nil)
			Expect(err).To(MatchError(ContainSubstring("unsupported completion provider")))
		})
	})
})
