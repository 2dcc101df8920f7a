// internal/repository/postgres/customer_avatar_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"erp-sync-service/internal/domain/customer"
	xerrors "erp-sync-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type CustomerAvatarRepository struct {
	db *pgxpool.Pool
}

func NewCustomerAvatarRepository(db *pgxpool.Pool) *CustomerAvatarRepository {
	return &CustomerAvatarRepository{db: db}
}

const avatarColumns = `
	id, remote_customer_id, name, email, phone, city,
	first_order_date, last_order_date, total_orders, total_revenue, avg_order_value,
	order_frequency_days, days_since_last_order,
	health_score, churn_risk_score, upsell_potential_score, engagement_score,
	created_at, updated_at, last_synced_at`

func scanAvatar(row pgx.Row, a *customer.CustomerAvatar) error {
	return row.Scan(
		&a.ID, &a.RemoteCustomerID, &a.Name, &a.Email, &a.Phone, &a.City,
		&a.FirstOrderDate, &a.LastOrderDate, &a.TotalOrders, &a.TotalRevenue, &a.AvgOrderValue,
		&a.OrderFrequencyDays, &a.DaysSinceLastOrder,
		&a.HealthScore, &a.ChurnRiskScore, &a.UpsellPotentialScore, &a.EngagementScore,
		&a.CreatedAt, &a.UpdatedAt, &a.LastSyncedAt,
	)
}

// Upsert inserts or updates the avatar keyed by remote customer id in a single
// statement. created_at survives updates. Reports whether a row was inserted.
func (r *CustomerAvatarRepository) Upsert(ctx context.Context, a *customer.CustomerAvatar) (bool, error) {
	query := `
		INSERT INTO customer_avatars (
			remote_customer_id, name, email, phone, city,
			first_order_date, last_order_date, total_orders, total_revenue, avg_order_value,
			order_frequency_days, days_since_last_order,
			health_score, churn_risk_score, upsell_potential_score, engagement_score,
			created_at, updated_at, last_synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17, $17)
		ON CONFLICT (remote_customer_id) DO UPDATE SET
			name = CASE WHEN $18::boolean THEN COALESCE(customer_avatars.name, EXCLUDED.name) ELSE EXCLUDED.name END,
			email = CASE WHEN $18::boolean THEN customer_avatars.email ELSE EXCLUDED.email END,
			phone = CASE WHEN $18::boolean THEN customer_avatars.phone ELSE EXCLUDED.phone END,
			city = CASE WHEN $18::boolean THEN customer_avatars.city ELSE EXCLUDED.city END,
			first_order_date = EXCLUDED.first_order_date,
			last_order_date = EXCLUDED.last_order_date,
			total_orders = EXCLUDED.total_orders,
			total_revenue = EXCLUDED.total_revenue,
			avg_order_value = EXCLUDED.avg_order_value,
			order_frequency_days = EXCLUDED.order_frequency_days,
			days_since_last_order = EXCLUDED.days_since_last_order,
			health_score = EXCLUDED.health_score,
			churn_risk_score = EXCLUDED.churn_risk_score,
			upsell_potential_score = EXCLUDED.upsell_potential_score,
			engagement_score = EXCLUDED.engagement_score,
			updated_at = EXCLUDED.updated_at,
			last_synced_at = EXCLUDED.last_synced_at
		RETURNING id, name, email, phone, city, created_at, updated_at, (xmax = 0) AS inserted
	`

	syncedAt := a.LastSyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}

	var inserted bool
	err := r.db.QueryRow(
		ctx, query,
		a.RemoteCustomerID, a.Name, a.Email, a.Phone, a.City,
		a.FirstOrderDate, a.LastOrderDate, a.TotalOrders, a.TotalRevenue, a.AvgOrderValue,
		a.OrderFrequencyDays, a.DaysSinceLastOrder,
		a.HealthScore, a.ChurnRiskScore, a.UpsellPotentialScore, a.EngagementScore,
		syncedAt, a.KeepContact,
	).Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.City, &a.CreatedAt, &a.UpdatedAt, &inserted)
	if err != nil {
		return false, &xerrors.PersistenceError{
			Op:  "upsert customer_avatar",
			Key: strconv.FormatInt(a.RemoteCustomerID, 10),
			Err: err,
		}
	}

	a.LastSyncedAt = syncedAt
	return inserted, nil
}

// FindByRemoteID retrieves an avatar by its remote customer id
func (r *CustomerAvatarRepository) FindByRemoteID(ctx context.Context, remoteID int64) (*customer.CustomerAvatar, error) {
	query := `SELECT ` + avatarColumns + ` FROM customer_avatars WHERE remote_customer_id = $1`

	var a customer.CustomerAvatar
	err := scanAvatar(r.db.QueryRow(ctx, query, remoteID), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer avatar: %w", err)
	}

	return &a, nil
}

// FindIDsByRemoteIDs maps remote customer ids to local avatar ids. Ids with no
// local avatar are absent from the result.
func (r *CustomerAvatarRepository) FindIDsByRemoteIDs(ctx context.Context, remoteIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(remoteIDs))
	if len(remoteIDs) == 0 {
		return out, nil
	}

	query := `SELECT remote_customer_id, id FROM customer_avatars WHERE remote_customer_id = ANY($1)`
	rows, err := r.db.Query(ctx, query, pq.Array(remoteIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to look up avatar ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var remoteID, id int64
		if err := rows.Scan(&remoteID, &id); err != nil {
			return nil, fmt.Errorf("failed to scan avatar id: %w", err)
		}
		out[remoteID] = id
	}

	return out, rows.Err()
}

var avatarSortColumns = map[string]string{
	"health_score":           "health_score",
	"churn_risk_score":       "churn_risk_score",
	"upsell_potential_score": "upsell_potential_score",
	"engagement_score":       "engagement_score",
	"total_revenue":          "total_revenue",
	"total_orders":           "total_orders",
	"last_order_date":        "last_order_date",
	"last_synced_at":         "last_synced_at",
}

// List retrieves avatars with filters and pagination
func (r *CustomerAvatarRepository) List(ctx context.Context, filters *customer.CustomerListFilters) ([]customer.CustomerAvatar, int64, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d OR city ILIKE $%d)",
			argPos, argPos, argPos, argPos,
		))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	if filters.MinChurnRisk != nil {
		conditions = append(conditions, fmt.Sprintf("churn_risk_score >= $%d", argPos))
		args = append(args, *filters.MinChurnRisk)
		argPos++
	}

	if filters.MaxHealth != nil {
		conditions = append(conditions, fmt.Sprintf("health_score <= $%d", argPos))
		args = append(args, *filters.MaxHealth)
		argPos++
	}

	if filters.MinUpsell != nil {
		conditions = append(conditions, fmt.Sprintf("upsell_potential_score >= $%d", argPos))
		args = append(args, *filters.MinUpsell)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM customer_avatars %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count customer avatars: %w", err)
	}

	// Pagination
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	offset := (filters.Page - 1) * filters.PageSize

	// Sorting; only whitelisted columns reach the query text
	sortBy := "churn_risk_score"
	if col, ok := avatarSortColumns[filters.SortBy]; ok {
		sortBy = col
	}
	sortOrder := "DESC"
	if strings.EqualFold(filters.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM customer_avatars
		%s
		ORDER BY %s %s NULLS LAST, id ASC
		LIMIT $%d OFFSET $%d
	`, avatarColumns, whereClause, sortBy, sortOrder, argPos, argPos+1)
	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customer avatars: %w", err)
	}
	defer rows.Close()

	avatars := []customer.CustomerAvatar{}
	for rows.Next() {
		var a customer.CustomerAvatar
		if err := scanAvatar(rows, &a); err != nil {
			return nil, 0, fmt.Errorf("failed to scan customer avatar: %w", err)
		}
		avatars = append(avatars, a)
	}

	return avatars, total, rows.Err()
}

// GetStats aggregates scores and revenue across all avatars
func (r *CustomerAvatarRepository) GetStats(ctx context.Context) (*customer.CustomerStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE churn_risk_score >= $1),
			COUNT(*) FILTER (WHERE upsell_potential_score >= $2),
			COALESCE(AVG(health_score), 0)::float8,
			COALESCE(AVG(churn_risk_score), 0)::float8,
			COALESCE(SUM(total_revenue), 0),
			MAX(last_synced_at)
		FROM customer_avatars
	`

	var stats customer.CustomerStats
	var lastSynced sql.NullTime
	err := r.db.QueryRow(ctx, query, customer.AtRiskChurnScore, customer.HighUpsellScore).Scan(
		&stats.TotalCustomers, &stats.AtRisk, &stats.HighUpsell,
		&stats.AvgHealthScore, &stats.AvgChurnScore, &stats.TotalRevenue, &lastSynced,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer stats: %w", err)
	}

	if lastSynced.Valid {
		stats.LastSyncedAt = &lastSynced.Time
	}

	return &stats, nil
}
