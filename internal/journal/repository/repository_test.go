package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	journaldomain "github.com/smallbiznis/groupsync/internal/journal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&journaldomain.Delivery{}))
	return conn
}

// Tests share one snowflake node: two nodes with the same node number generate
// colliding IDs when asked within the same millisecond.
var (
	nodeOnce sync.Once
	node     *snowflake.Node
	nodeErr  error
)

func testNode(t *testing.T) *snowflake.Node {
	t.Helper()
	nodeOnce.Do(func() { node, nodeErr = snowflake.NewNode(1) })
	require.NoError(t, nodeErr)
	return node
}

func newDelivery(t *testing.T, source, deliveryID string) *journaldomain.Delivery {
	t.Helper()

	return &journaldomain.Delivery{
		ID:              testNode(t).Generate(),
		Source:          source,
		DeliveryID:      deliveryID,
		EventType:       "purchase.completed",
		Payload:         datatypes.JSONMap{"payment_id": "pay-1"},
		CommandsApplied: 2,
		CommandsSkipped: 1,
		ProcessedAt:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFindByDedupeKeyUnseen(t *testing.T) {
	conn := setupDB(t)
	repo := Provide()

	found, err := repo.FindByDedupeKey(context.Background(), conn, "edd", "dlv-1")
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestInsertThenFind(t *testing.T) {
	conn := setupDB(t)
	repo := Provide()

	require.NoError(t, repo.Insert(context.Background(), conn, newDelivery(t, "edd", "dlv-1")))

	found, err := repo.FindByDedupeKey(context.Background(), conn, "edd", "dlv-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "purchase.completed", found.EventType)
	require.Equal(t, 2, found.CommandsApplied)
	require.Equal(t, 1, found.CommandsSkipped)
}

func TestInsertDuplicateDedupeKey(t *testing.T) {
	conn := setupDB(t)
	repo := Provide()

	require.NoError(t, repo.Insert(context.Background(), conn, newDelivery(t, "edd", "dlv-1")))

	err := repo.Insert(context.Background(), conn, newDelivery(t, "edd", "dlv-1"))
	require.ErrorIs(t, err, journaldomain.ErrDuplicateDelivery)
}

func TestDedupeKeyIsScopedBySource(t *testing.T) {
	conn := setupDB(t)
	repo := Provide()

	require.NoError(t, repo.Insert(context.Background(), conn, newDelivery(t, "edd", "dlv-1")))
	require.NoError(t, repo.Insert(context.Background(), conn, newDelivery(t, "woo", "dlv-1")))

	found, err := repo.FindByDedupeKey(context.Background(), conn, "woo", "dlv-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "woo", found.Source)
}
