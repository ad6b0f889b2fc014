package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-kit/orderflow/internal/stock/application"
	"github.com/storefront-kit/orderflow/internal/stock/domain"
	stockpg "github.com/storefront-kit/orderflow/internal/stock/infrastructure/postgres"
	pgsupport "github.com/storefront-kit/orderflow/pkg/postgres"
)

func TestStockAvailabilityAgainstPostgres(t *testing.T) {
	if os.Getenv("ORDERFLOW_INTEGRATION") == "" {
		t.Skip("set ORDERFLOW_INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()
	pgC, pgURL, err := SetupPostgres(ctx, "stockdb")
	require.NoError(t, err)
	defer func() { _ = pgC.Terminate(context.Background()) }()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, pgsupport.Migrate(pgURL, "../../migrations/stock", log))

	pool, err := pgsupport.Connect(ctx, pgURL, log)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `INSERT INTO stock_items (sku_code, quantity) VALUES ('SKU-1', 3), ('SKU-2', 0)`)
	require.NoError(t, err)

	svc := application.NewService(log, stockpg.NewRepository(log, pool))

	got, err := svc.Check(ctx, []string{"SKU-1", "SKU-2", "SKU-3"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Availability{
		{SKUCode: "SKU-1", Available: true},
		{SKUCode: "SKU-2", Available: false},
		{SKUCode: "SKU-3", Available: false},
	}, got)
}
