package orderrepo

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/dbmigrate"
	"ecommerce-core/internal/money"
	"ecommerce-core/internal/order"
	"ecommerce-core/internal/stock"
)

// PostgresRepo persists orders and stock levels via database/sql + lib/pq,
// following the teacher's internal/db/store.go conventions (BeginTx,
// FOR UPDATE row locks, ON CONFLICT upserts, $N placeholders).
type PostgresRepo struct {
	db *sql.DB
}

// OpenPostgres mirrors store.Open: sane pool limits for a service process.
func OpenPostgres(dsn string, maxConns int, idleTimeout time.Duration) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperror.Wrap(apperror.MissingDataStore, "open postgres", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetConnMaxLifetime(idleTimeout)
	if err := db.Ping(); err != nil {
		return nil, apperror.Wrap(apperror.MissingDataStore, "ping postgres", err)
	}
	return &PostgresRepo{db: db}, nil
}

// Migrate mirrors the teacher's Store.Migrate, applying the schema under
// dir via golang-migrate before the repo is used.
func (r *PostgresRepo) Migrate(dir string) error {
	return dbmigrate.Up(r.db, dir)
}

func (r *PostgresRepo) Stock() StockRepository { return &postgresStockRepo{db: r.db} }

func (r *PostgresRepo) Create(ctx context.Context, o order.Order) ([]LinePay, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperror.Wrap(apperror.MissingDataStore, "begin tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_header (id, owner_id, create_time, contact_name, contact_email, contact_phone, ship_name, ship_address)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.OwnerID, o.CreateTime, o.Billing.ContactName, o.Billing.ContactEmail, o.Billing.ContactPhone,
		o.Shipping.ContactName, o.Shipping.Address,
	)
	if err != nil {
		return nil, apperror.Wrap(apperror.DataCorruption, "insert order_header", err)
	}

	pay := make([]LinePay, 0, len(o.Lines))
	for _, l := range o.Lines {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_line (order_id, seller_id, product_type, product_id, reserved_until,
			  qty_requested, qty_paid, qty_paid_last_update, amount_unit, amount_total)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			o.ID, l.SellerID, l.ProductType, l.ProductID, l.ReservedUntil,
			l.QtyRequested, l.QtyPaid, l.QtyPaidLastUpdate, l.Amount.Unit.String(), l.Amount.Total.String(),
		)
		if err != nil {
			return nil, apperror.Wrap(apperror.DataCorruption, "insert order_line", err)
		}
		pay = append(pay, LinePay{SellerID: l.SellerID, ProductType: l.ProductType, ProductID: l.ProductID, QtyRequested: l.QtyRequested})
	}

	for sellerID, snap := range o.Currencies {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_currency_snapshot (order_id, seller_id, currency_label, exchange_rate)
			 VALUES ($1,$2,$3,$4)`,
			o.ID, sellerID, snap.Label, snap.ExchangeRate.String(),
		)
		if err != nil {
			return nil, apperror.Wrap(apperror.DataCorruption, "insert currency snapshot", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.Wrap(apperror.DataCorruption, "commit create order", err)
	}
	return pay, nil
}

func (r *PostgresRepo) FetchAllLines(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seller_id, product_type, product_id, reserved_until, qty_requested, qty_paid,
		        qty_paid_last_update, amount_unit, amount_total
		 FROM order_line WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, apperror.Wrap(apperror.DataCorruption, "query order_line", err)
	}
	defer rows.Close()

	var out []order.Line
	for rows.Next() {
		var l order.Line
		var unitStr, totalStr string
		if err := rows.Scan(&l.SellerID, &l.ProductType, &l.ProductID, &l.ReservedUntil,
			&l.QtyRequested, &l.QtyPaid, &l.QtyPaidLastUpdate, &unitStr, &totalStr); err != nil {
			return nil, apperror.Wrap(apperror.DataCorruption, "scan order_line", err)
		}
		unit, err1 := parseDecimal(unitStr)
		total, err2 := parseDecimal(totalStr)
		if err1 != nil || err2 != nil {
			return nil, apperror.New(apperror.DataCorruption, "order_line amount parse failure")
		}
		l.Amount = money.Amount{Unit: unit, Total: total, Qty: l.QtyRequested}
		out = append(out, l)
	}
	return out, nil
}

func (r *PostgresRepo) FetchBilling(ctx context.Context, orderID string) (order.Billing, error) {
	var b order.Billing
	err := r.db.QueryRowContext(ctx,
		`SELECT contact_name, contact_email, contact_phone FROM order_header WHERE id = $1`, orderID,
	).Scan(&b.ContactName, &b.ContactEmail, &b.ContactPhone)
	if err == sql.ErrNoRows {
		return order.Billing{}, apperror.New(apperror.DataTableNotExist, "order not found: "+orderID)
	}
	if err != nil {
		return order.Billing{}, apperror.Wrap(apperror.DataCorruption, "fetch billing", err)
	}
	return b, nil
}

func (r *PostgresRepo) FetchShipping(ctx context.Context, orderID string) (order.Shipping, error) {
	var s order.Shipping
	err := r.db.QueryRowContext(ctx,
		`SELECT ship_name, ship_address FROM order_header WHERE id = $1`, orderID,
	).Scan(&s.ContactName, &s.Address)
	if err == sql.ErrNoRows {
		return order.Shipping{}, apperror.New(apperror.DataTableNotExist, "order not found: "+orderID)
	}
	if err != nil {
		return order.Shipping{}, apperror.Wrap(apperror.DataCorruption, "fetch shipping", err)
	}
	return s, nil
}

// UpdateLinesPayment loads lines FOR UPDATE within a transaction, applies cb,
// and writes back only the mutated qty_paid/qty_paid_last_update columns —
// the load-mutate-persist atomicity the callback contract requires.
func (r *PostgresRepo) UpdateLinesPayment(ctx context.Context, orderID string, updates []order.LinePaidUpdate, cb order.UpdateLinesPaymentFunc) ([]order.LinePayUpdateError, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperror.Wrap(apperror.MissingDataStore, "begin tx", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT seller_id, product_type, product_id, reserved_until, qty_requested, qty_paid,
		        qty_paid_last_update, amount_unit, amount_total
		 FROM order_line WHERE order_id = $1 FOR UPDATE`, orderID)
	if err != nil {
		return nil, apperror.Wrap(apperror.DataCorruption, "query order_line for update", err)
	}
	var lines []order.Line
	for rows.Next() {
		var l order.Line
		var unitStr, totalStr string
		if err := rows.Scan(&l.SellerID, &l.ProductType, &l.ProductID, &l.ReservedUntil,
			&l.QtyRequested, &l.QtyPaid, &l.QtyPaidLastUpdate, &unitStr, &totalStr); err != nil {
			rows.Close()
			return nil, apperror.Wrap(apperror.DataCorruption, "scan order_line", err)
		}
		unit, _ := parseDecimal(unitStr)
		total, _ := parseDecimal(totalStr)
		l.Amount = money.Amount{Unit: unit, Total: total, Qty: l.QtyRequested}
		lines = append(lines, l)
	}
	rows.Close()

	errs := cb(lines, updates)

	for _, l := range lines {
		_, err = tx.ExecContext(ctx,
			`UPDATE order_line SET qty_paid = $1, qty_paid_last_update = $2
			 WHERE order_id = $3 AND seller_id = $4 AND product_type = $5 AND product_id = $6`,
			l.QtyPaid, l.QtyPaidLastUpdate, orderID, l.SellerID, l.ProductType, l.ProductID,
		)
		if err != nil {
			return nil, apperror.Wrap(apperror.DataCorruption, "update order_line payment", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.Wrap(apperror.DataCorruption, "commit update_lines_payment", err)
	}
	return errs, nil
}

func (r *PostgresRepo) FetchLinesByReservedTimeRange(ctx context.Context, start, end time.Time, cb RangeCallback) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT order_id FROM order_line WHERE reserved_until BETWEEN $1 AND $2`, start, end)
	if err != nil {
		return apperror.Wrap(apperror.DataCorruption, "query reserved-time range", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return apperror.Wrap(apperror.DataCorruption, "scan order id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		lines, err := r.FetchAllLines(ctx, id)
		if err != nil {
			return err
		}
		var matched []order.Line
		for _, l := range lines {
			if !l.ReservedUntil.Before(start) && !l.ReservedUntil.After(end) {
				matched = append(matched, l)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if err := cb(ctx, id, matched); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepo) OwnerID(ctx context.Context, orderID string) (uint32, error) {
	var owner uint32
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM order_header WHERE id = $1`, orderID).Scan(&owner)
	if err == sql.ErrNoRows {
		return 0, apperror.New(apperror.DataTableNotExist, "order not found: "+orderID)
	}
	if err != nil {
		return 0, apperror.Wrap(apperror.DataCorruption, "owner_id", err)
	}
	return owner, nil
}

func (r *PostgresRepo) CreatedTime(ctx context.Context, orderID string) (time.Time, error) {
	var t time.Time
	err := r.db.QueryRowContext(ctx, `SELECT create_time FROM order_header WHERE id = $1`, orderID).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, apperror.New(apperror.DataTableNotExist, "order not found: "+orderID)
	}
	if err != nil {
		return time.Time{}, apperror.Wrap(apperror.DataCorruption, "created_time", err)
	}
	return t, nil
}

func (r *PostgresRepo) ScheduledJobLastTime(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := r.db.QueryRowContext(ctx, `SELECT last_time FROM scheduled_job_watermark WHERE job_name = 'discard_unpaid'`).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, apperror.Wrap(apperror.DataCorruption, "scheduled_job_last_time", err)
	}
	return t, nil
}

func (r *PostgresRepo) ScheduledJobTimeUpdate(ctx context.Context, t time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_job_watermark (job_name, last_time) VALUES ('discard_unpaid', $1)
		 ON CONFLICT (job_name) DO UPDATE SET last_time = EXCLUDED.last_time`, t)
	if err != nil {
		return apperror.Wrap(apperror.DataCorruption, "scheduled_job_time_update", err)
	}
	return nil
}

// ---- stock, SQL-backed -----------------------------------------------

type postgresStockRepo struct {
	db *sql.DB
}

func (s *postgresStockRepo) Fetch(ctx context.Context, ids []stock.Identity) (stock.Set, error) {
	out := stock.Set{}
	for _, id := range ids {
		rows, err := s.db.QueryContext(ctx,
			`SELECT total, booked, cancelled, expiry FROM stock_level
			 WHERE store_id=$1 AND product_type=$2 AND product_id=$3`,
			id.StoreID, id.ProductType, id.ProductID)
		if err != nil {
			return stock.Set{}, apperror.Wrap(apperror.DataCorruption, "fetch stock_level", err)
		}
		for rows.Next() {
			var l stock.Level
			l.Identity = id
			if err := rows.Scan(&l.Total, &l.Booked, &l.Cancelled, &l.Expiry); err != nil {
				rows.Close()
				return stock.Set{}, apperror.Wrap(apperror.DataCorruption, "scan stock_level", err)
			}
			out.Levels = append(out.Levels, l)
		}
		rows.Close()
	}
	return out, nil
}

func (s *postgresStockRepo) Save(ctx context.Context, set stock.Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Wrap(apperror.MissingDataStore, "begin tx", err)
	}
	defer tx.Rollback()
	for _, l := range set.Levels {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO stock_level (store_id, product_type, product_id, expiry, total, booked, cancelled)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)
			 ON CONFLICT (store_id, product_type, product_id, expiry)
			 DO UPDATE SET total=EXCLUDED.total, booked=EXCLUDED.booked, cancelled=EXCLUDED.cancelled`,
			l.StoreID, l.ProductType, l.ProductID, l.Expiry, l.Total, l.Booked, l.Cancelled)
		if err != nil {
			return apperror.Wrap(apperror.DataCorruption, "upsert stock_level", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperror.Wrap(apperror.DataCorruption, "commit stock save", err)
	}
	return nil
}

func (s *postgresStockRepo) TryReserve(ctx context.Context, cb StockReserveFunc, lines []stock.LineRequest, now time.Time) []stock.LineError {
	ids := make([]stock.Identity, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.Identity)
	}
	set, err := s.Fetch(ctx, ids)
	if err != nil {
		out := make([]stock.LineError, 0, len(lines))
		for _, l := range lines {
			out = append(out, stock.LineError{Identity: l.Identity, Kind: stock.NotExist})
		}
		return out
	}
	errs := cb(&set, lines, now)
	if len(errs) == 0 {
		_ = s.Save(ctx, set)
	}
	return errs
}

func (s *postgresStockRepo) TryReturn(ctx context.Context, cb StockReturnFunc, reqs []stock.ReturnRequest) []stock.ReturnError {
	ids := make([]stock.Identity, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.Identity)
	}
	set, err := s.Fetch(ctx, ids)
	if err != nil {
		out := make([]stock.ReturnError, 0, len(reqs))
		for _, r := range reqs {
			out = append(out, stock.ReturnError{Identity: r.Identity, Kind: stock.ReturnNotExist})
		}
		return out
	}
	errs := cb(&set, reqs)
	_ = s.Save(ctx, set)
	return errs
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
