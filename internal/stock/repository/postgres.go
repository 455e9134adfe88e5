package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/database"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) InTx(ctx context.Context, fn func(tx stock.TxRepository) error) error {
	return database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		return fn(&txRepository{tx: tx})
	})
}

func (r *PGRepository) GetCounter(ctx context.Context, key model.StockKey) (*model.StockCounter, error) {
	return getCounter(ctx, r.DB, key)
}

func (r *PGRepository) EntriesAfter(ctx context.Context, key model.StockKey, afterSeq int64) ([]model.StockLedgerEntry, error) {
	return entriesAfter(ctx, r.DB, key, afterSeq)
}

func (r *PGRepository) LatestCheckpoint(ctx context.Context, key model.StockKey) (*model.StockCheckpoint, error) {
	return latestCheckpoint(ctx, r.DB, key)
}

func (r *PGRepository) SizeBelongsTo(ctx context.Context, merchantID, sizeID, subProductID string) (bool, error) {
	var count int
	query := r.DB.Rebind(`SELECT count(*) FROM sizes WHERE id = ? AND merchant_id = ? AND sub_product_id = ?`)
	if err := r.DB.GetContext(ctx, &count, query, sizeID, merchantID, subProductID); err != nil {
		return false, apperror.NewInternalError("check size", err)
	}
	return count > 0, nil
}

func (r *PGRepository) ListKeys(ctx context.Context, merchantID string) ([]model.StockKey, error) {
	var items []model.StockKey
	query := r.DB.Rebind(`
		SELECT merchant_id, size_id, sub_product_id FROM stock_counters WHERE merchant_id = ?
		UNION
		SELECT DISTINCT merchant_id, size_id, sub_product_id FROM stock_ledger_entries WHERE merchant_id = ?
		ORDER BY size_id, sub_product_id`)
	if err := r.DB.SelectContext(ctx, &items, query, merchantID, merchantID); err != nil {
		return nil, apperror.NewInternalError("list stock keys", err)
	}
	return items, nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockLedgerEntry, int, error) {
	var items []model.StockLedgerEntry
	var count int

	conditions := []string{"merchant_id = :merchant_id"}
	args := map[string]interface{}{"merchant_id": f.MerchantID}

	if f.SizeID != "" {
		conditions = append(conditions, "size_id = :size_id")
		args["size_id"] = f.SizeID
	}
	if f.SubProductID != "" {
		conditions = append(conditions, "sub_product_id = :sub_product_id")
		args["sub_product_id"] = f.SubProductID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}
	if f.ReferenceID != "" {
		conditions = append(conditions, "reference_id = :reference_id")
		args["reference_id"] = f.ReferenceID
	}
	if f.StartDate != nil {
		conditions = append(conditions, "occurred_at >= :start_date")
		args["start_date"] = f.StartDate.UTC()
	}
	if f.EndDate != nil {
		conditions = append(conditions, "occurred_at <= :end_date")
		args["end_date"] = f.EndDate.UTC()
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	countQuery := "SELECT count(*) FROM stock_ledger_entries" + whereClause
	if err := namedCount(ctx, r.DB, countQuery, args, &count); err != nil {
		return nil, 0, apperror.NewInternalError("count movements", err)
	}

	query := "SELECT * FROM stock_ledger_entries" + whereClause + " ORDER BY occurred_at DESC, seq DESC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, apperror.NewInternalError("prepare movements", err)
	}
	defer nstmt.Close()

	if err := nstmt.SelectContext(ctx, &items, args); err != nil {
		return nil, 0, apperror.NewInternalError("list movements", err)
	}
	return items, count, nil
}

func (r *PGRepository) ListDiscrepancies(ctx context.Context, merchantID string, limit int) ([]model.StockDiscrepancy, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []model.StockDiscrepancy
	query := r.DB.Rebind(`SELECT * FROM stock_discrepancies WHERE merchant_id = ? ORDER BY detected_at DESC LIMIT ?`)
	if err := r.DB.SelectContext(ctx, &items, query, merchantID, limit); err != nil {
		return nil, apperror.NewInternalError("list discrepancies", err)
	}
	return items, nil
}

type txRepository struct {
	tx *sqlx.Tx
}

func (r *txRepository) GetCounter(ctx context.Context, key model.StockKey) (*model.StockCounter, error) {
	return getCounter(ctx, r.tx, key)
}

func (r *txRepository) EntriesAfter(ctx context.Context, key model.StockKey, afterSeq int64) ([]model.StockLedgerEntry, error) {
	return entriesAfter(ctx, r.tx, key, afterSeq)
}

func (r *txRepository) LatestCheckpoint(ctx context.Context, key model.StockKey) (*model.StockCheckpoint, error) {
	return latestCheckpoint(ctx, r.tx, key)
}

// AppendEntry is the ledger's only write. Entries are never updated or deleted.
func (r *txRepository) AppendEntry(ctx context.Context, entry *model.StockLedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return apperror.NewValidationError("ledger entry: %v", err)
	}

	query := `
        INSERT INTO stock_ledger_entries (
            id, merchant_id, size_id, sub_product_id, seq,
            movement_type, direction, quantity, prior_quantity, resulting_quantity,
            reason, reference_id, performed_by, occurred_at
        )
        VALUES (
            :id, :merchant_id, :size_id, :sub_product_id, :seq,
            :movement_type, :direction, :quantity, :prior_quantity, :resulting_quantity,
            :reason, :reference_id, :performed_by, :occurred_at
        )
    `
	if _, err := r.tx.NamedExecContext(ctx, query, entry); err != nil {
		return apperror.NewInternalError("append ledger entry", err)
	}
	return nil
}

func (r *txRepository) InsertCounter(ctx context.Context, c *model.StockCounter) error {
	query := `
        INSERT INTO stock_counters (
            merchant_id, size_id, sub_product_id, current_quantity,
            last_ledger_entry_id, last_seq, version, updated_at
        )
        VALUES (
            :merchant_id, :size_id, :sub_product_id, :current_quantity,
            :last_ledger_entry_id, :last_seq, :version, :updated_at
        )
        ON CONFLICT (merchant_id, size_id, sub_product_id) DO NOTHING
    `
	res, err := r.tx.NamedExecContext(ctx, query, c)
	if err != nil {
		return apperror.NewInternalError("insert counter", err)
	}
	return expectOneRow(res, "stock counter was created concurrently")
}

// UpdateCounter only succeeds while the stored version still equals expectedVersion.
func (r *txRepository) UpdateCounter(ctx context.Context, c *model.StockCounter, expectedVersion int64) error {
	query := r.tx.Rebind(`
        UPDATE stock_counters
        SET current_quantity = ?, last_ledger_entry_id = ?, last_seq = ?, version = ?, updated_at = ?
        WHERE merchant_id = ? AND size_id = ? AND sub_product_id = ? AND version = ?
    `)
	res, err := r.tx.ExecContext(ctx, query,
		c.CurrentQuantity, c.LastLedgerEntryID, c.LastSeq, c.Version, c.UpdatedAt,
		c.MerchantID, c.SizeID, c.SubProductID, expectedVersion,
	)
	if err != nil {
		return apperror.NewInternalError("update counter", err)
	}
	return expectOneRow(res, "stock counter changed by another writer")
}

func (r *txRepository) SaveCheckpoint(ctx context.Context, cp *model.StockCheckpoint) error {
	query := `
        INSERT INTO stock_checkpoints (id, merchant_id, size_id, sub_product_id, seq, quantity, created_at)
        VALUES (:id, :merchant_id, :size_id, :sub_product_id, :seq, :quantity, :created_at)
    `
	if _, err := r.tx.NamedExecContext(ctx, query, cp); err != nil {
		return apperror.NewInternalError("save checkpoint", err)
	}
	return nil
}

func (r *txRepository) SaveDiscrepancy(ctx context.Context, d *model.StockDiscrepancy) error {
	query := `
        INSERT INTO stock_discrepancies (
            id, merchant_id, size_id, sub_product_id, counter_quantity, ledger_quantity,
            counter_seq, ledger_seq, detail, detected_at
        )
        VALUES (
            :id, :merchant_id, :size_id, :sub_product_id, :counter_quantity, :ledger_quantity,
            :counter_seq, :ledger_seq, :detail, :detected_at
        )
    `
	if _, err := r.tx.NamedExecContext(ctx, query, d); err != nil {
		return apperror.NewInternalError("save discrepancy", err)
	}
	return nil
}

func getCounter(ctx context.Context, q sqlx.ExtContext, key model.StockKey) (*model.StockCounter, error) {
	var c model.StockCounter
	query := q.Rebind(`SELECT * FROM stock_counters WHERE merchant_id = ? AND size_id = ? AND sub_product_id = ?`)
	err := sqlx.GetContext(ctx, q, &c, query, key.MerchantID, key.SizeID, key.SubProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.NewInternalError("get counter", err)
	}
	return &c, nil
}

func entriesAfter(ctx context.Context, q sqlx.ExtContext, key model.StockKey, afterSeq int64) ([]model.StockLedgerEntry, error) {
	var items []model.StockLedgerEntry
	query := q.Rebind(`
        SELECT * FROM stock_ledger_entries
        WHERE merchant_id = ? AND size_id = ? AND sub_product_id = ? AND seq > ?
        ORDER BY seq ASC
    `)
	if err := sqlx.SelectContext(ctx, q, &items, query, key.MerchantID, key.SizeID, key.SubProductID, afterSeq); err != nil {
		return nil, apperror.NewInternalError("load ledger entries", err)
	}
	return items, nil
}

func latestCheckpoint(ctx context.Context, q sqlx.ExtContext, key model.StockKey) (*model.StockCheckpoint, error) {
	var cp model.StockCheckpoint
	query := q.Rebind(`
        SELECT * FROM stock_checkpoints
        WHERE merchant_id = ? AND size_id = ? AND sub_product_id = ?
        ORDER BY seq DESC
        LIMIT 1
    `)
	err := sqlx.GetContext(ctx, q, &cp, query, key.MerchantID, key.SizeID, key.SubProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.NewInternalError("load checkpoint", err)
	}
	return &cp, nil
}

func expectOneRow(res sql.Result, conflictMsg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.NewInternalError("rows affected", err)
	}
	if n == 0 {
		return apperror.NewConflictError(conflictMsg)
	}
	return nil
}

func namedCount(ctx context.Context, db *sqlx.DB, query string, args map[string]interface{}, dest *int) error {
	rows, err := db.NamedQueryContext(ctx, query, args)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	return rows.Scan(dest)
}
