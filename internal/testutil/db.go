package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-ledger-service/internal/pkg/database"
)

// NewDB opens a private in-memory SQLite database with every migration applied.
// A single connection keeps the database alive and makes transactions serialize like row locks would.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db.DB, "sqlite3", "up"))
	return db
}

type Catalog struct {
	MerchantID   string
	ProductID    string
	SubProductID string
	SizeID       string
}

// SeedCatalog inserts one product with one sub-product priced at price and one size.
func SeedCatalog(t *testing.T, db *sqlx.DB, merchantID string, price decimal.Decimal) Catalog {
	t.Helper()

	c := Catalog{
		MerchantID:   merchantID,
		ProductID:    uuid.NewString(),
		SubProductID: uuid.NewString(),
		SizeID:       uuid.NewString(),
	}
	now := time.Now().UTC()

	db.MustExec(db.Rebind(`INSERT INTO products (id, merchant_id, name, created_at) VALUES (?, ?, ?, ?)`),
		c.ProductID, merchantID, "Cold Brew", now)
	db.MustExec(db.Rebind(`INSERT INTO sub_products (id, merchant_id, product_id, name, price, version, updated_at) VALUES (?, ?, ?, ?, ?, 1, ?)`),
		c.SubProductID, merchantID, c.ProductID, "Cold Brew Can", price, now)
	c.SizeID = SeedSize(t, db, merchantID, c.SubProductID)
	return c
}

func SeedSize(t *testing.T, db *sqlx.DB, merchantID, subProductID string) string {
	t.Helper()
	id := uuid.NewString()
	db.MustExec(db.Rebind(`INSERT INTO sizes (id, merchant_id, sub_product_id, label) VALUES (?, ?, ?, ?)`),
		id, merchantID, subProductID, "330ml")
	return id
}
