package cmdutil_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/cmdutil"
	"github.com/papercomputeco/engram/pkg/config"
)

var _ = Describe("LoadConfig", func() {
	var (
		dir     string
		cmd     *cobra.Command
		storage cmdutil.StorageFlagValues
		agent   cmdutil.AgentFlagValues
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()

		cmd = &cobra.Command{Use: "test"}
		cmd.Flags().String("config-dir", dir, "")
		cmdutil.AddStorageFlags(cmd, &storage)
		cmdutil.AddAgentFlags(cmd, &agent)
	})

	writeConfig := func(body string) {
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o600)).To(Succeed())
	}

	It("returns defaults with no file, env or flags", func() {
		Expect(cmd.ParseFlags(nil)).To(Succeed())

		cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags, config.AgentFlags)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal("sqlite"))
		Expect(cfg.Memory.CompactionThreshold).To(Equal(uint(15)))
	})

	It("reads config.toml", func() {
		writeConfig("[memory]\ntop_k = 9\n")
		Expect(cmd.ParseFlags(nil)).To(Succeed())

		cfg, err := cmdutil.LoadConfig(cmd, config.AgentFlags)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Memory.TopK).To(Equal(uint(9)))
	})

	It("lets env vars override the file", func() {
		writeConfig("[storage]\nqdrant_target = \"file:6334\"\n")
		GinkgoT().Setenv("ENGRAM_STORAGE_QDRANT_TARGET", "env:6334")
		Expect(cmd.ParseFlags(nil)).To(Succeed())

		cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.QdrantTarget).To(Equal("env:6334"))
	})

	It("lets flags override env vars", func() {
		GinkgoT().Setenv("ENGRAM_STORAGE_DRIVER", "postgres")
		Expect(cmd.ParseFlags([]string{"--storage-driver", "inmemory", "--compaction-threshold", "30"})).To(Succeed())

		cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags, config.AgentFlags)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal("inmemory"))
		Expect(cfg.Memory.CompactionThreshold).To(Equal(uint(30)))
	})
})

var _ = Describe("flag accessors", func() {
	It("returns zero values when the flags are not registered", func() {
		cmd := &cobra.Command{Use: "bare"}
		Expect(cmdutil.ConfigDir(cmd)).To(BeEmpty())
		Expect(cmdutil.Debug(cmd)).To(BeFalse())
	})
})
