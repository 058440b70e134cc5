package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tablegate/tablegate/internal/database"
	"github.com/tablegate/tablegate/internal/models"
)

// StoreRepository backs the gateway actions: catalog reads, customer history,
// order creation and message logging. Every query uses bound parameters; no
// caller-supplied value is ever concatenated into SQL text.
type StoreRepository struct {
	db *database.DB
}

// NewStoreRepository creates a new StoreRepository
func NewStoreRepository(db *database.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

// ListMenu returns all currently available menu items.
func (r *StoreRepository) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	query := `
		SELECT id, name, description, category, price_cents, available, tags
		FROM menu_items
		WHERE available = true
		ORDER BY category, name
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var items []models.MenuItem
	for rows.Next() {
		var item models.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Category,
			&item.PriceCents, &item.Available, &item.Tags); err != nil {
			return nil, database.MapPostgresError(err)
		}
		items = append(items, item)
	}
	return items, database.MapPostgresError(rows.Err())
}

// GetCustomerHistory returns the most recent orders for a customer.
func (r *StoreRepository) GetCustomerHistory(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	query := `
		SELECT id, user_id, customer_phone, items, total_cents, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var (
			order    models.Order
			itemsRaw []byte
		)
		if err := rows.Scan(&order.ID, &order.UserID, &order.CustomerPhone,
			&itemsRaw, &order.TotalCents, &order.Status, &order.CreatedAt); err != nil {
			return nil, database.MapPostgresError(err)
		}
		if err := json.Unmarshal(itemsRaw, &order.Items); err != nil {
			return nil, models.ErrInternalServer
		}
		orders = append(orders, order)
	}
	return orders, database.MapPostgresError(rows.Err())
}

// ListAddons returns the addons for a product, optionally narrowed to one
// category. The category arrives pre-validated and pre-sanitized but is still
// passed as a bound parameter, never interpolated.
func (r *StoreRepository) ListAddons(ctx context.Context, productID, category string) ([]models.Addon, error) {
	query := `
		SELECT id, product_id, name, category, price_cents
		FROM addons
		WHERE product_id = $1
		  AND ($2 = '' OR category = $2)
		ORDER BY name
	`

	rows, err := r.db.Pool.Query(ctx, query, productID, category)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var addons []models.Addon
	for rows.Next() {
		var a models.Addon
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Name, &a.Category, &a.PriceCents); err != nil {
			return nil, database.MapPostgresError(err)
		}
		addons = append(addons, a)
	}
	return addons, database.MapPostgresError(rows.Err())
}

// CreateOrder inserts a new order and returns it with ID and timestamp set.
func (r *StoreRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	itemsRaw, err := json.Marshal(order.Items)
	if err != nil {
		return nil, models.ErrBadRequest
	}

	query := `
		INSERT INTO orders (id, user_id, customer_phone, items, total_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, created_at
	`

	created := *order
	created.Status = "pending"
	err = r.db.Pool.QueryRow(ctx, query,
		uuid.New().String(),
		order.UserID,
		order.CustomerPhone,
		itemsRaw,
		order.TotalCents,
		created.Status,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &created, nil
}

// LogMessage appends one conversational message to the log.
func (r *StoreRepository) LogMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	query := `
		INSERT INTO chat_messages (id, user_id, phone, direction, body, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, created_at
	`

	logged := *msg
	err := r.db.Pool.QueryRow(ctx, query,
		uuid.New().String(),
		msg.UserID,
		msg.Phone,
		msg.Direction,
		msg.Body,
	).Scan(&logged.ID, &logged.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &logged, nil
}

// PurgeOldMessages removes chat messages older than the retention cutoff.
func (r *StoreRepository) PurgeOldMessages(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM chat_messages WHERE created_at < $1`

	tag, err := r.db.Pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
