package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrTokenNotFound is returned when no device token matches the lookup.
var ErrTokenNotFound = errors.New("device token not found")

// DeviceTokenRepository handles database operations for device tokens
type DeviceTokenRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDeviceTokenRepository creates a new device token repository
func NewDeviceTokenRepository(db *DB, logger *zap.Logger) *DeviceTokenRepository {
	return &DeviceTokenRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts a device token or refreshes an existing (user_id, token) row.
// Re-registering reactivates a previously deactivated token.
func (r *DeviceTokenRepository) Upsert(ctx context.Context, dt *DeviceToken) error {
	if dt.ID == uuid.Nil {
		dt.ID = uuid.New()
	}

	query := `
		INSERT INTO device_tokens (
			id, user_id, token, device_type, active
		) VALUES (
			$1, $2, $3, $4, $5
		)
		ON CONFLICT (user_id, token) DO UPDATE
		SET device_type = EXCLUDED.device_type,
		    active = EXCLUDED.active,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		dt.ID,
		dt.UserID,
		dt.Token,
		dt.DeviceType,
		dt.Active,
	).Scan(&dt.ID, &dt.CreatedAt, &dt.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to upsert device token",
			zap.Error(err),
			zap.String("user_id", dt.UserID),
			zap.String("device_type", dt.DeviceType),
		)
		return fmt.Errorf("upsert device token: %w", err)
	}

	r.logger.Info("device token registered",
		zap.String("token_id", dt.ID.String()),
		zap.String("user_id", dt.UserID),
		zap.String("device_type", dt.DeviceType),
		zap.Bool("active", dt.Active),
	)

	return nil
}

// Get retrieves a device token by ID
func (r *DeviceTokenRepository) Get(ctx context.Context, id uuid.UUID) (*DeviceToken, error) {
	query := `
		SELECT
			id, user_id, token, device_type, endpoint_arn,
			active, created_at, updated_at
		FROM device_tokens
		WHERE id = $1
	`

	var dt DeviceToken
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&dt.ID,
		&dt.UserID,
		&dt.Token,
		&dt.DeviceType,
		&dt.EndpointARN,
		&dt.Active,
		&dt.CreatedAt,
		&dt.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrTokenNotFound
	}

	if err != nil {
		r.logger.Error("failed to get device token",
			zap.Error(err),
			zap.String("token_id", id.String()),
		)
		return nil, fmt.Errorf("query device token: %w", err)
	}

	return &dt, nil
}

// ListActiveByUser retrieves every active device token registered by a user
func (r *DeviceTokenRepository) ListActiveByUser(ctx context.Context, userID string) ([]*DeviceToken, error) {
	query := `
		SELECT
			id, user_id, token, device_type, endpoint_arn,
			active, created_at, updated_at
		FROM device_tokens
		WHERE user_id = $1 AND active
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*DeviceToken
	for rows.Next() {
		var dt DeviceToken
		err := rows.Scan(
			&dt.ID,
			&dt.UserID,
			&dt.Token,
			&dt.DeviceType,
			&dt.EndpointARN,
			&dt.Active,
			&dt.CreatedAt,
			&dt.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		tokens = append(tokens, &dt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return tokens, nil
}

// SetEndpointARN stores the platform endpoint created for a token
func (r *DeviceTokenRepository) SetEndpointARN(ctx context.Context, id uuid.UUID, arn string) error {
	query := `
		UPDATE device_tokens
		SET endpoint_arn = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, arn, id)
	if err != nil {
		r.logger.Error("failed to set endpoint arn",
			zap.Error(err),
			zap.String("token_id", id.String()),
		)
		return fmt.Errorf("set endpoint arn: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// DeactivateByEndpoint marks inactive every token bound to a disabled
// platform endpoint. Returns the number of rows touched.
func (r *DeviceTokenRepository) DeactivateByEndpoint(ctx context.Context, arn string) (int64, error) {
	query := `
		UPDATE device_tokens
		SET active = FALSE, updated_at = NOW()
		WHERE endpoint_arn = $1 AND active
	`

	result, err := r.db.Pool().Exec(ctx, query, arn)
	if err != nil {
		return 0, fmt.Errorf("deactivate by endpoint: %w", err)
	}

	affected := result.RowsAffected()
	if affected > 0 {
		r.logger.Info("device tokens deactivated for disabled endpoint",
			zap.String("endpoint_arn", arn),
			zap.Int64("count", affected),
		)
	}

	return affected, nil
}

// DeleteByUser removes every token a user has registered. Used when a user
// signs out everywhere or deletes their account.
func (r *DeviceTokenRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	query := `DELETE FROM device_tokens WHERE user_id = $1`

	result, err := r.db.Pool().Exec(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to delete device tokens",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return 0, fmt.Errorf("delete device tokens: %w", err)
	}

	deleted := result.RowsAffected()
	r.logger.Info("device tokens deleted",
		zap.String("user_id", userID),
		zap.Int64("count", deleted),
	)

	return deleted, nil
}
