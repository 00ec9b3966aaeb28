package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/storage"
	"github.com/papercomputeco/engram/pkg/storage/postgres"
	"github.com/papercomputeco/engram/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("ENGRAM_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("ENGRAM_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func() storage.Driver {
		ctx := context.Background()
		d, err := postgres.NewDriver(ctx, postgres.Config{
			DSN:        connStr(),
			Dimensions: storagetest.Dimensions,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Clear(ctx)).To(Succeed())
		return d
	})

	It("requires a dsn", func() {
		_, err := postgres.NewDriver(context.Background(), postgres.Config{Dimensions: 3}, nil)
		Expect(err).To(HaveOccurred())
	})
})
