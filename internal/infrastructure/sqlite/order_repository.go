package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/order"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type lineRecord struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type orderRecord struct {
	Items            []lineRecord         `json:"items"`
	Subtotal         decimal.Decimal      `json:"subtotal"`
	Tax              decimal.Decimal      `json:"tax"`
	DeliveryFee      decimal.Decimal      `json:"delivery_fee"`
	Total            decimal.Decimal      `json:"total"`
	Status           domain.Status        `json:"status"`
	PaymentStatus    domain.PaymentStatus `json:"payment_status"`
	PaymentMethod    domain.PaymentMethod `json:"payment_method"`
	PaymentReference string               `json:"payment_reference,omitempty"`
	Address          domain.Address       `json:"address"`
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	payload, err := encodeOrder(o)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, idempotency_key, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.IdempotencyKey, payload, o.CreatedAt.UnixNano(), o.UpdatedAt.UnixNano(),
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("order repository: insert: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, selectOrder+" WHERE id = ?", id)
	return scanOrder(row)
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	payload, err := encodeOrder(o)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET payload = ?, updated_at = ? WHERE id = ?",
		payload, o.UpdatedAt.UnixNano(), o.ID,
	)
	if err != nil {
		return fmt.Errorf("order repository: update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		selectOrder+" WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("order repository: list: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order repository: list: %w", err)
	}
	return out, nil
}

func (r *OrderRepository) FindByIdempotency(ctx context.Context, userID, key string) (*domain.Order, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, selectOrder+" WHERE user_id = ? AND idempotency_key = ?", userID, key)
	return scanOrder(row)
}

const selectOrder = "SELECT id, user_id, idempotency_key, payload, created_at, updated_at FROM orders"

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var (
		o                    domain.Order
		payload              string
		createdAt, updatedAt int64
	)
	err := s.Scan(&o.ID, &o.UserID, &o.IdempotencyKey, &payload, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repository: scan: %w", err)
	}

	var rec orderRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("order repository: decode %s: %w", o.ID, err)
	}
	o.Items = make([]domain.Line, 0, len(rec.Items))
	for _, l := range rec.Items {
		o.Items = append(o.Items, domain.Line(l))
	}
	o.Subtotal = rec.Subtotal
	o.Tax = rec.Tax
	o.DeliveryFee = rec.DeliveryFee
	o.Total = rec.Total
	o.Status = rec.Status
	o.PaymentStatus = rec.PaymentStatus
	o.PaymentMethod = rec.PaymentMethod
	o.PaymentReference = rec.PaymentReference
	o.Address = rec.Address
	o.CreatedAt = time.Unix(0, createdAt).UTC()
	o.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &o, nil
}

func encodeOrder(o *domain.Order) (string, error) {
	rec := orderRecord{
		Items:            make([]lineRecord, 0, len(o.Items)),
		Subtotal:         o.Subtotal,
		Tax:              o.Tax,
		DeliveryFee:      o.DeliveryFee,
		Total:            o.Total,
		Status:           o.Status,
		PaymentStatus:    o.PaymentStatus,
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		Address:          o.Address,
	}
	for _, l := range o.Items {
		rec.Items = append(rec.Items, lineRecord(l))
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("order repository: encode %s: %w", o.ID, err)
	}
	return string(raw), nil
}
