package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/database"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing/dto"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) InTx(ctx context.Context, fn func(tx pricing.TxRepository) error) error {
	return database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		return fn(&txRepository{tx: tx})
	})
}

func (r *PGRepository) GetSubProduct(ctx context.Context, merchantID, subProductID string) (*model.SubProduct, error) {
	return getSubProduct(ctx, r.DB, merchantID, subProductID)
}

func (r *PGRepository) CreateSchedule(ctx context.Context, s *model.ScheduledPriceChange) error {
	query := `
        INSERT INTO scheduled_price_changes (
            id, merchant_id, product_id, current_price, new_price, effective_at,
            scheduled_by, status, created_at, updated_at
        )
        VALUES (
            :id, :merchant_id, :product_id, :current_price, :new_price, :effective_at,
            :scheduled_by, :status, :created_at, :updated_at
        )
    `
	if _, err := r.DB.NamedExecContext(ctx, query, s); err != nil {
		return apperror.NewInternalError("create schedule", err)
	}
	return nil
}

func (r *PGRepository) GetSchedule(ctx context.Context, merchantID, id string) (*model.ScheduledPriceChange, error) {
	var s model.ScheduledPriceChange
	query := r.DB.Rebind(`SELECT * FROM scheduled_price_changes WHERE id = ? AND merchant_id = ?`)
	if err := r.DB.GetContext(ctx, &s, query, id, merchantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.NewInternalError("get schedule", err)
	}
	return &s, nil
}

func (r *PGRepository) ListSchedules(ctx context.Context, f *dto.ScheduleFilters) ([]model.ScheduledPriceChange, int, error) {
	var items []model.ScheduledPriceChange
	var count int

	conditions := []string{"merchant_id = :merchant_id"}
	args := map[string]interface{}{"merchant_id": f.MerchantID}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	if err := namedCount(ctx, r.DB, "SELECT count(*) FROM scheduled_price_changes"+whereClause, args, &count); err != nil {
		return nil, 0, apperror.NewInternalError("count schedules", err)
	}

	query := "SELECT * FROM scheduled_price_changes" + whereClause + " ORDER BY effective_at ASC, id ASC" + paginate(f.Page, f.PageSize)
	if err := namedSelect(ctx, r.DB, query, args, &items); err != nil {
		return nil, 0, apperror.NewInternalError("list schedules", err)
	}
	return items, count, nil
}

func (r *PGRepository) CancelSchedule(ctx context.Context, merchantID, id, actor string, at time.Time) (bool, error) {
	query := r.DB.Rebind(`
        UPDATE scheduled_price_changes
        SET status = ?, cancelled_at = ?, cancelled_by = ?, updated_at = ?
        WHERE id = ? AND merchant_id = ? AND status = ?
    `)
	res, err := r.DB.ExecContext(ctx, query,
		model.ScheduleCancelled, at, actor, at,
		id, merchantID, model.SchedulePending,
	)
	if err != nil {
		return false, apperror.NewInternalError("cancel schedule", err)
	}
	return affected(res)
}

func (r *PGRepository) ReleaseStaleClaims(ctx context.Context, claimedBefore, now time.Time) (int64, error) {
	query := r.DB.Rebind(`
        UPDATE scheduled_price_changes
        SET status = ?, claim_token = NULL, claimed_at = NULL, updated_at = ?
        WHERE status = ? AND claimed_at < ?
    `)
	res, err := r.DB.ExecContext(ctx, query, model.SchedulePending, now, model.ScheduleProcessing, claimedBefore)
	if err != nil {
		return 0, apperror.NewInternalError("release stale claims", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.NewInternalError("rows affected", err)
	}
	return n, nil
}

func (r *PGRepository) DueSchedules(ctx context.Context, now time.Time, limit int) ([]model.ScheduledPriceChange, error) {
	var items []model.ScheduledPriceChange
	query := r.DB.Rebind(`
        SELECT * FROM scheduled_price_changes
        WHERE status = ? AND effective_at <= ?
        ORDER BY effective_at ASC, id ASC
        LIMIT ?
    `)
	if err := r.DB.SelectContext(ctx, &items, query, model.SchedulePending, now, limit); err != nil {
		return nil, apperror.NewInternalError("select due schedules", err)
	}
	return items, nil
}

func (r *PGRepository) ClaimSchedule(ctx context.Context, id, token string, now time.Time) (bool, error) {
	query := r.DB.Rebind(`
        UPDATE scheduled_price_changes
        SET status = ?, claim_token = ?, claimed_at = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `)
	res, err := r.DB.ExecContext(ctx, query, model.ScheduleProcessing, token, now, now, id, model.SchedulePending)
	if err != nil {
		return false, apperror.NewInternalError("claim schedule", err)
	}
	return affected(res)
}

func (r *PGRepository) MarkFailed(ctx context.Context, id, token, reason string, at time.Time) error {
	query := r.DB.Rebind(`
        UPDATE scheduled_price_changes
        SET status = ?, error = ?, updated_at = ?
        WHERE id = ? AND status = ? AND claim_token = ?
    `)
	res, err := r.DB.ExecContext(ctx, query, model.ScheduleFailed, reason, at, id, model.ScheduleProcessing, token)
	if err != nil {
		return apperror.NewInternalError("mark schedule failed", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewConflictError("schedule %s is no longer claimed by this worker", id)
	}
	return nil
}

func (r *PGRepository) ListAudit(ctx context.Context, f *dto.AuditFilters) ([]model.PriceAuditRecord, int, error) {
	var items []model.PriceAuditRecord
	var count int

	conditions := []string{"merchant_id = :merchant_id"}
	args := map[string]interface{}{"merchant_id": f.MerchantID}

	if f.SubProductID != "" {
		conditions = append(conditions, "sub_product_id = :sub_product_id")
		args["sub_product_id"] = f.SubProductID
	}
	if f.Source != "" {
		conditions = append(conditions, "source = :source")
		args["source"] = f.Source
	}
	if f.StartDate != nil {
		conditions = append(conditions, "changed_at >= :start_date")
		args["start_date"] = f.StartDate.UTC()
	}
	if f.EndDate != nil {
		conditions = append(conditions, "changed_at <= :end_date")
		args["end_date"] = f.EndDate.UTC()
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	if err := namedCount(ctx, r.DB, "SELECT count(*) FROM price_audit_records"+whereClause, args, &count); err != nil {
		return nil, 0, apperror.NewInternalError("count audit records", err)
	}

	query := "SELECT * FROM price_audit_records" + whereClause + " ORDER BY changed_at DESC, id DESC" + paginate(f.Page, f.PageSize)
	if err := namedSelect(ctx, r.DB, query, args, &items); err != nil {
		return nil, 0, apperror.NewInternalError("list audit records", err)
	}
	return items, count, nil
}

type txRepository struct {
	tx *sqlx.Tx
}

func (r *txRepository) GetSubProduct(ctx context.Context, merchantID, subProductID string) (*model.SubProduct, error) {
	return getSubProduct(ctx, r.tx, merchantID, subProductID)
}

func (r *txRepository) UpdatePrice(ctx context.Context, sp *model.SubProduct, expectedVersion int64) error {
	query := r.tx.Rebind(`
        UPDATE sub_products
        SET price = ?, version = ?, updated_at = ?
        WHERE id = ? AND merchant_id = ? AND version = ?
    `)
	res, err := r.tx.ExecContext(ctx, query, sp.Price, sp.Version, sp.UpdatedAt, sp.ID, sp.MerchantID, expectedVersion)
	if err != nil {
		return apperror.NewInternalError("update price", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewConflictError("price of %s changed by another writer", sp.ID)
	}
	return nil
}

// AppendAudit is the audit log's only write. Records are never updated or deleted.
func (r *txRepository) AppendAudit(ctx context.Context, rec *model.PriceAuditRecord) error {
	if err := rec.Validate(); err != nil {
		return apperror.NewValidationError("audit record: %v", err)
	}

	query := `
        INSERT INTO price_audit_records (
            id, merchant_id, sub_product_id, changes, reason, changed_by, source, schedule_id, changed_at
        )
        VALUES (
            :id, :merchant_id, :sub_product_id, :changes, :reason, :changed_by, :source, :schedule_id, :changed_at
        )
    `
	if _, err := r.tx.NamedExecContext(ctx, query, rec); err != nil {
		return apperror.NewInternalError("append audit record", err)
	}
	return nil
}

func (r *txRepository) MarkApplied(ctx context.Context, id, claimToken string, at time.Time) error {
	query := r.tx.Rebind(`
        UPDATE scheduled_price_changes
        SET status = ?, applied_at = ?, applied_by = ?, updated_at = ?
        WHERE id = ? AND status = ? AND claim_token = ?
    `)
	res, err := r.tx.ExecContext(ctx, query,
		model.ScheduleApplied, at, model.SchedulerActor, at,
		id, model.ScheduleProcessing, claimToken,
	)
	if err != nil {
		return apperror.NewInternalError("mark schedule applied", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewConflictError("schedule %s is no longer claimed by this worker", id)
	}
	return nil
}

func getSubProduct(ctx context.Context, q sqlx.ExtContext, merchantID, subProductID string) (*model.SubProduct, error) {
	var sp model.SubProduct
	query := q.Rebind(`SELECT * FROM sub_products WHERE id = ? AND merchant_id = ?`)
	if err := sqlx.GetContext(ctx, q, &sp, query, subProductID, merchantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.NewInternalError("get sub-product", err)
	}
	return &sp, nil
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

func namedSelect(ctx context.Context, db *sqlx.DB, query string, args map[string]interface{}, dest interface{}) error {
	nstmt, err := db.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer nstmt.Close()
	return nstmt.SelectContext(ctx, dest, args)
}

func paginate(page, pageSize int) string {
	if pageSize <= 0 {
		return ""
	}
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.NewInternalError("rows affected", err)
	}
	return n > 0, nil
}
