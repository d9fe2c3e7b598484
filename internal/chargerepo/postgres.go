package chargerepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/charge"
	"ecommerce-core/internal/dbmigrate"
)

// PostgresRepo is the SQL-backed Repository, following the teacher's
// internal/db/store.go raw-SQL conventions. State transitions use a
// write-if-state-matches UPDATE ... WHERE state = $expected, the SQL
// analogue of GetWalletForUpdate's row lock / optimistic pattern.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// Migrate mirrors the teacher's Store.Migrate, applying the schema under
// dir via golang-migrate before the repo is used.
func (r *PostgresRepo) Migrate(dir string) error {
	return dbmigrate.Up(r.db, dir)
}

func (r *PostgresRepo) Create(ctx context.Context, c charge.Charge) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Wrap(apperror.MissingDataStore, "begin tx", err)
	}
	defer tx.Rollback()

	ct := c.Meta.CreateTime.Truncate(time.Second)
	detail, err := json.Marshal(c.Meta.Method.Detail)
	if err != nil {
		return apperror.Wrap(apperror.DataCorruption, "marshal method detail", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO charge_buyer_toplvl
		   (usr_id, create_time, order_id, state, pay_method, detail_3rdparty)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		c.Meta.OwnerID, ct, c.Meta.OrderID, int(c.Meta.State), string(c.Meta.Method.Label), detail,
	)
	if err != nil {
		return apperror.Wrap(apperror.DataCorruption, "insert charge_buyer_toplvl", err)
	}

	for _, l := range c.Lines {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO charge_line
			   (buyer_id, create_time, store_id, product_type, product_id,
			    amt_unit, amt_total, qty, amt_refunded_unit, amt_refunded_total, amt_refunded_qty)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			c.Meta.OwnerID, ct, l.SellerID, l.ProductType, l.ProductID,
			l.AmountOriginal.Unit.String(), l.AmountOriginal.Total.String(), l.AmountOriginal.Qty,
			l.AmountRefunded.Unit.String(), l.AmountRefunded.Total.String(), l.AmountRefunded.Qty,
		)
		if err != nil {
			return apperror.Wrap(apperror.DataCorruption, "insert charge_line", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperror.Wrap(apperror.DataCorruption, "commit create charge", err)
	}
	return nil
}

func (r *PostgresRepo) Fetch(ctx context.Context, key Key) (charge.Charge, error) {
	var c charge.Charge
	var stateInt int
	var methodLabel string
	var detail []byte
	var accepted, completed, synced sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT order_id, state, pay_method, detail_3rdparty,
		        processor_accepted_time, processor_completed_time, orderapp_synced_time
		 FROM charge_buyer_toplvl WHERE usr_id=$1 AND create_time=$2`,
		key.OwnerID, key.CreateTime,
	).Scan(&c.Meta.OrderID, &stateInt, &methodLabel, &detail, &accepted, &completed, &synced)
	if err == sql.ErrNoRows {
		return charge.Charge{}, apperror.New(apperror.DataTableNotExist, "charge not found")
	}
	if err != nil {
		return charge.Charge{}, apperror.Wrap(apperror.DataCorruption, "fetch charge_buyer_toplvl", err)
	}

	c.Meta.OwnerID = key.OwnerID
	c.Meta.CreateTime = key.CreateTime
	c.Meta.State = charge.PayInState(stateInt)
	c.Meta.Method = charge.ThirdPartyState{Label: charge.ThirdPartyLabel(methodLabel), Detail: detail}
	if accepted.Valid {
		c.Meta.Timestamps.ProcessorAcceptedTime = &accepted.Time
	}
	if completed.Valid {
		c.Meta.Timestamps.ProcessorCompletedTime = &completed.Time
	}
	if synced.Valid {
		c.Meta.Timestamps.OrderAppSyncedTime = &synced.Time
	}
	if err := c.Meta.Timestamps.Validate(c.Meta.State); err != nil {
		return charge.Charge{}, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT store_id, product_type, product_id, amt_unit, amt_total, qty,
		        amt_refunded_unit, amt_refunded_total, amt_refunded_qty
		 FROM charge_line WHERE buyer_id=$1 AND create_time=$2`,
		key.OwnerID, key.CreateTime)
	if err != nil {
		return charge.Charge{}, apperror.Wrap(apperror.DataCorruption, "fetch charge_line", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l charge.Line
		var unitStr, totalStr, refUnitStr, refTotalStr string
		if err := rows.Scan(&l.SellerID, &l.ProductType, &l.ProductID, &unitStr, &totalStr, &l.AmountOriginal.Qty,
			&refUnitStr, &refTotalStr, &l.AmountRefunded.Qty); err != nil {
			return charge.Charge{}, apperror.Wrap(apperror.DataCorruption, "scan charge_line", err)
		}
		l.AmountOriginal.Unit = mustDecimal(unitStr)
		l.AmountOriginal.Total = mustDecimal(totalStr)
		l.AmountRefunded.Unit = mustDecimal(refUnitStr)
		l.AmountRefunded.Total = mustDecimal(refTotalStr)
		c.Lines = append(c.Lines, l)
	}
	return c, nil
}

// AdvanceState uses an UPDATE ... WHERE state = $expected guard: if zero
// rows are affected, either the charge is missing or a concurrent advance
// already moved it — both collapse to DataCorruption per spec.md §5.
func (r *PostgresRepo) AdvanceState(ctx context.Context, key Key, expectCurrent, next charge.PayInState, at time.Time) error {
	var ts charge.StateTimestamps
	switch next {
	case charge.ProcessorAccepted:
		ts.ProcessorAcceptedTime = &at
	case charge.ProcessorCompleted:
		ts.ProcessorCompletedTime = &at
	case charge.OrderAppSynced:
		ts.OrderAppSyncedTime = &at
	}
	if err := ts.Advance(expectCurrent, next, at); err != nil {
		return err
	}

	var col string
	switch next {
	case charge.ProcessorAccepted:
		col = "processor_accepted_time"
	case charge.ProcessorCompleted:
		col = "processor_completed_time"
	case charge.OrderAppSynced:
		col = "orderapp_synced_time"
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE charge_buyer_toplvl SET state=$1, `+col+`=$2
		 WHERE usr_id=$3 AND create_time=$4 AND state=$5`,
		int(next), at, key.OwnerID, key.CreateTime, int(expectCurrent))
	if err != nil {
		return apperror.Wrap(apperror.DataCorruption, "advance charge state", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperror.New(apperror.DataCorruption, "charge state changed concurrently or not found")
	}
	return nil
}

func (r *PostgresRepo) ApplyRefund(ctx context.Context, key Key, sellerID uint32, productType uint8, productID uint64, delta charge.Line) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE charge_line
		 SET amt_refunded_qty = amt_refunded_qty + $1,
		     amt_refunded_total = amt_refunded_total::numeric + $2,
		     amt_refunded_unit = $3
		 WHERE buyer_id=$4 AND create_time=$5 AND store_id=$6 AND product_type=$7 AND product_id=$8`,
		delta.AmountRefunded.Qty, delta.AmountRefunded.Total.String(), delta.AmountRefunded.Unit.String(),
		key.OwnerID, key.CreateTime, sellerID, productType, productID)
	if err != nil {
		return apperror.Wrap(apperror.DataCorruption, "apply refund to charge_line", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperror.New(apperror.MissingReqLine, "charge line not found for refund apply")
	}
	return nil
}

// FetchByTimeRange scans charge_buyer_toplvl by create_time and reloads
// each match through Fetch, keeping the row-shape logic in one place.
func (r *PostgresRepo) FetchByTimeRange(ctx context.Context, start, end time.Time) ([]charge.Charge, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT usr_id, create_time FROM charge_buyer_toplvl WHERE create_time BETWEEN $1 AND $2`,
		start, end)
	if err != nil {
		return nil, apperror.Wrap(apperror.DataCorruption, "scan charge_buyer_toplvl by time range", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.OwnerID, &k.CreateTime); err != nil {
			return nil, apperror.Wrap(apperror.DataCorruption, "scan charge key", err)
		}
		keys = append(keys, k)
	}

	out := make([]charge.Charge, 0, len(keys))
	for _, k := range keys {
		c, err := r.Fetch(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
