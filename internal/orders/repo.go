package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const bookColumns = `id, title, author, category, description, image_url, rating, review_count,
	price, stock_quantity, created_at, updated_at`

const orderColumns = `id, COALESCE(external_id, ''), user_id, items, shipping_address, payment_method,
	status, total_amount, stock_restored, created_at, updated_at`

// Repo is the PostgreSQL Store. Books and orders live in the tables created by
// postgres.Migrate.
type Repo struct{ DB *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{DB: pool} }

// Reserve: lock every referenced book (FOR UPDATE, ascending id) -> check -> decrement -> insert order.
// Any shortfall rolls the whole transaction back.
func (r *Repo) Reserve(ctx context.Context, res Reservation) (Order, bool, error) {
	if len(res.Items) == 0 {
		return Order{}, false, errNoItems
	}

	if res.ExternalID != "" {
		existing, err := r.findByExternalID(ctx, res.UserID, res.ExternalID)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return Order{}, false, err
		}
	}

	var order Order
	err := withTx(ctx, r.DB, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id, price, stock_quantity FROM books
			WHERE id = ANY($1) ORDER BY id FOR UPDATE`, res.BookIDs())
		if err != nil {
			return persistenceErr("tx.Query books", err)
		}
		snapshot := map[string]Book{}
		for rows.Next() {
			var b Book
			if err := rows.Scan(&b.ID, &b.Price, &b.StockQuantity); err != nil {
				rows.Close()
				return persistenceErr("rows.Scan book", err)
			}
			snapshot[b.ID] = b
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return persistenceErr("rows.Err books", err)
		}

		if err := checkStock(res, snapshot); err != nil {
			return err
		}

		demand := res.Demand()
		for _, id := range res.BookIDs() {
			ct, err := tx.Exec(ctx, `UPDATE books SET stock_quantity = stock_quantity - $2, updated_at = now()
				WHERE id = $1 AND stock_quantity >= $2`, id, demand[id])
			if err != nil {
				return persistenceErr("tx.Exec decrement", err)
			}
			if ct.RowsAffected() != 1 {
				return &InsufficientStockError{Shortages: []StockShortage{{
					BookID: id, Requested: demand[id], Available: snapshot[id].StockQuantity,
				}}}
			}
		}

		itemsJSON, err := json.Marshal(res.Items)
		if err != nil {
			return fmt.Errorf("json.Marshal items: %w", err)
		}
		addrJSON, err := json.Marshal(res.ShippingAddress)
		if err != nil {
			return fmt.Errorf("json.Marshal shipping_address: %w", err)
		}

		order = Order{
			ID:              uuid.NewString(),
			ExternalID:      res.ExternalID,
			UserID:          res.UserID,
			Items:           res.Items,
			ShippingAddress: res.ShippingAddress,
			PaymentMethod:   res.PaymentMethod,
			Status:          StatusPending,
			TotalAmount:     res.TotalAmount,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO orders(id, external_id, user_id, items, shipping_address, payment_method, status, total_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at`,
			order.ID, nilIfEmpty(order.ExternalID), order.UserID, itemsJSON, addrJSON,
			string(order.PaymentMethod), string(order.Status), order.TotalAmount,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return persistenceErr("tx.QueryRow insert order", err)
		}
		return nil
	})
	if err != nil {
		// a concurrent request with the same idempotency key won the insert
		var pgErr *pgconn.PgError
		if res.ExternalID != "" && errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			existing, findErr := r.findByExternalID(ctx, res.UserID, res.ExternalID)
			if findErr == nil {
				return existing, true, nil
			}
		}
		return Order{}, false, fmt.Errorf("withTx: %w", err)
	}

	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, false, nil
}

func (r *Repo) findByExternalID(ctx context.Context, userID, externalID string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND external_id = $2`,
		userID, externalID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, persistenceErr("db.QueryRow order by external_id", err)
	}
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if orderID == "" {
		return Order{}, errOrderIDEmpty
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, persistenceErr("db.QueryRow order", err)
	}
	return o, nil
}

const orderFilterWhere = ` WHERE ($1 = '' OR user_id = $1)
	AND ($2 = '' OR status = $2)
	AND ($3::timestamptz IS NULL OR created_at >= $3)
	AND ($4::timestamptz IS NULL OR created_at <= $4)`

func (r *Repo) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error) {
	args := []any{filter.UserID, string(filter.Status), filter.CreatedAfter, filter.CreatedBefore}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+orderFilterWhere, args...).Scan(&total); err != nil {
		return nil, 0, persistenceErr("db.QueryRow count orders", err)
	}

	var limit *int
	if filter.Limit > 0 {
		limit = lo.ToPtr(filter.Limit)
	}
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders`+orderFilterWhere+`
		ORDER BY created_at DESC, id DESC LIMIT $5 OFFSET $6`,
		append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, persistenceErr("db.Query orders", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, persistenceErr("scanOrder", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, persistenceErr("rows.Err orders", err)
	}
	return out, total, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, orderID string, change StatusChange) (StatusUpdate, error) {
	if orderID == "" {
		return StatusUpdate{}, errOrderIDEmpty
	}

	var upd StatusUpdate
	err := withTx(ctx, r.DB, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return persistenceErr("tx.QueryRow order", err)
		}

		prev, restock, err := change.apply(&o, time.Now().UTC())
		upd.From = prev
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2, stock_restored = $3, updated_at = $4 WHERE id = $1`,
			o.ID, string(o.Status), o.StockRestored, o.UpdatedAt); err != nil {
			return persistenceErr("tx.Exec update status", err)
		}

		if restock {
			back := Reservation{Items: o.Items}
			demand := back.Demand()
			for _, id := range back.BookIDs() {
				// the book may have been removed from the catalog since; nothing to restore then
				if _, err := tx.Exec(ctx, `UPDATE books SET stock_quantity = stock_quantity + $2, updated_at = now()
					WHERE id = $1`, id, demand[id]); err != nil {
					return persistenceErr("tx.Exec restock", err)
				}
			}
		}

		upd.Order, upd.Restocked = o, restock
		return nil
	})
	if err != nil {
		return StatusUpdate{From: upd.From}, fmt.Errorf("withTx: %w", err)
	}
	return upd, nil
}

// DeleteOrder is an administrative override; stock is not restored.
func (r *Repo) DeleteOrder(ctx context.Context, orderID string) error {
	if orderID == "" {
		return errOrderIDEmpty
	}
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return persistenceErr("db.Exec delete order", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repo) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, persistenceErr("db.Query books", err)
	}
	return collectBooks(rows)
}

func (r *Repo) GetBooks(ctx context.Context, ids []string) ([]Book, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ANY($1) ORDER BY id`, lo.Uniq(ids))
	if err != nil {
		return nil, persistenceErr("db.Query books by id", err)
	}
	return collectBooks(rows)
}

func (r *Repo) GetBook(ctx context.Context, id string) (Book, error) {
	b, err := scanBook(r.DB.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, &BookNotFoundError{BookIDs: []string{id}}
		}
		return Book{}, persistenceErr("db.QueryRow book", err)
	}
	return b, nil
}

// SeedBooks upserts catalog rows. Catalog management proper lives outside this service.
func (r *Repo) SeedBooks(ctx context.Context, books ...Book) error {
	return withTx(ctx, r.DB, func(tx pgx.Tx) error {
		for _, b := range books {
			if _, err := tx.Exec(ctx, `
				INSERT INTO books(id, title, author, category, description, image_url, rating, review_count, price, stock_quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (id) DO UPDATE SET
					title = EXCLUDED.title, author = EXCLUDED.author, category = EXCLUDED.category,
					description = EXCLUDED.description, image_url = EXCLUDED.image_url,
					rating = EXCLUDED.rating, review_count = EXCLUDED.review_count,
					price = EXCLUDED.price, stock_quantity = EXCLUDED.stock_quantity, updated_at = now()`,
				b.ID, b.Title, b.Author, b.Category, b.Description, b.ImageURL, b.Rating, b.ReviewCount,
				b.Price, b.StockQuantity,
			); err != nil {
				return persistenceErr(fmt.Sprintf("tx.Exec upsert book[%s]", b.ID), err)
			}
		}
		return nil
	})
}

func collectBooks(rows pgx.Rows) ([]Book, error) {
	defer rows.Close()
	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, persistenceErr("scanBook", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("rows.Err books", err)
	}
	return out, nil
}

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.Description, &b.ImageURL,
		&b.Rating, &b.ReviewCount, &b.Price, &b.StockQuantity, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Book{}, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                   Order
		itemsJSON, addrJSON []byte
		payment, status     string
		total               decimal.Decimal
	)
	err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &itemsJSON, &addrJSON, &payment,
		&status, &total, &o.StockRestored, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return Order{}, fmt.Errorf("json.Unmarshal items[%s]: %w", o.ID, err)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return Order{}, fmt.Errorf("json.Unmarshal shipping_address[%s]: %w", o.ID, err)
	}

	parsed, err := ParseStatus(status)
	if err != nil {
		return Order{}, fmt.Errorf("ParseStatus[%s]: %w", status, err)
	}

	o.Status = parsed
	o.PaymentMethod = PaymentMethod(payment)
	o.TotalAmount = total
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
