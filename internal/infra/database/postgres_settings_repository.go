package database

import (
	"context"
	"database/sql"
	"fmt"

	"paytrack/internal/domain/settings"
)

// PostgresSettingsRepository implements settings.Repository on Postgres.
// Both settings tables hold a single row that is lazily created with
// defaults on first read.
type PostgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

func (r *PostgresSettingsRepository) GetOrCreate(ctx context.Context) (*settings.PaySchedule, *settings.AppSettings, error) {
	ps, err := r.getOrCreatePaySchedule(ctx)
	if err != nil {
		return nil, nil, err
	}
	as, err := r.getOrCreateAppSettings(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ps, as, nil
}

func (r *PostgresSettingsRepository) getOrCreatePaySchedule(ctx context.Context) (*settings.PaySchedule, error) {
	ps := settings.PaySchedule{}
	query := `SELECT id, anchor_payday_date, timezone, created_at, updated_at FROM pay_schedule ORDER BY id ASC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&ps.ID, &ps.AnchorPaydayDate, &ps.Timezone, &ps.CreatedAt, &ps.UpdatedAt)
	if err == nil {
		return &ps, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("error getting pay schedule: %w", err)
	}

	ps.AnchorPaydayDate = settings.DefaultAnchorPaydayDate
	ps.Timezone = settings.DefaultTimezone
	insert := `INSERT INTO pay_schedule (anchor_payday_date, timezone) VALUES ($1, $2)
               RETURNING id, created_at, updated_at`
	if err := r.db.QueryRowContext(ctx, insert, ps.AnchorPaydayDate, ps.Timezone).Scan(&ps.ID, &ps.CreatedAt, &ps.UpdatedAt); err != nil {
		return nil, fmt.Errorf("error creating default pay schedule: %w", err)
	}
	return &ps, nil
}

func (r *PostgresSettingsRepository) getOrCreateAppSettings(ctx context.Context) (*settings.AppSettings, error) {
	as := settings.AppSettings{}
	query := `SELECT id, due_soon_days, daily_summary_time, telegram_enabled, telegram_bot_token, telegram_chat_id, created_at, updated_at
               FROM app_settings ORDER BY id ASC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query).Scan(
		&as.ID, &as.DueSoonDays, &as.DailySummaryTime, &as.TelegramEnabled,
		&as.TelegramBotToken, &as.TelegramChatID, &as.CreatedAt, &as.UpdatedAt,
	)
	if err == nil {
		return &as, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("error getting app settings: %w", err)
	}

	as.DueSoonDays = settings.DefaultDueSoonDays
	as.DailySummaryTime = settings.DefaultDailySummaryTime
	as.TelegramEnabled = false
	insert := `INSERT INTO app_settings (due_soon_days, daily_summary_time, telegram_enabled) VALUES ($1, $2, $3)
               RETURNING id, created_at, updated_at`
	if err := r.db.QueryRowContext(ctx, insert, as.DueSoonDays, as.DailySummaryTime, as.TelegramEnabled).Scan(&as.ID, &as.CreatedAt, &as.UpdatedAt); err != nil {
		return nil, fmt.Errorf("error creating default app settings: %w", err)
	}
	return &as, nil
}

func (r *PostgresSettingsRepository) UpdatePaySchedule(ctx context.Context, ps *settings.PaySchedule) error {
	query := `UPDATE pay_schedule SET anchor_payday_date = $1, timezone = $2, updated_at = NOW()
               WHERE id = $3 RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, ps.AnchorPaydayDate, ps.Timezone, ps.ID).Scan(&ps.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error updating pay schedule: %w", err)
	}
	return nil
}

func (r *PostgresSettingsRepository) UpdateAppSettings(ctx context.Context, as *settings.AppSettings) error {
	query := `UPDATE app_settings
               SET due_soon_days = $1, daily_summary_time = $2, telegram_enabled = $3,
                   telegram_bot_token = $4, telegram_chat_id = $5, updated_at = NOW()
               WHERE id = $6 RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		as.DueSoonDays, as.DailySummaryTime, as.TelegramEnabled, as.TelegramBotToken, as.TelegramChatID, as.ID,
	).Scan(&as.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error updating app settings: %w", err)
	}
	return nil
}
