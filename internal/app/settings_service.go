package app

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"paytrack/internal/domain/schedule"
	"paytrack/internal/domain/settings"
)

var (
	ErrInvalidTimezone    = fmt.Errorf("invalid timezone")
	ErrInvalidSummaryTime = fmt.Errorf("daily summary time must be HH:MM")
	ErrNegativeDueSoon    = fmt.Errorf("due-soon days must be non-negative")
)

// AppSettingsUpdate carries the editable app-settings fields.
type AppSettingsUpdate struct {
	DueSoonDays      int
	DailySummaryTime string
	TelegramEnabled  bool
	TelegramBotToken string
	TelegramChatID   string
}

// SettingsService validates and applies pay-schedule and app-settings
// updates.
type SettingsService struct {
	settings settings.Repository
}

func NewSettingsService(settings settings.Repository) *SettingsService {
	return &SettingsService{settings: settings}
}

// Get returns the settings rows, creating defaults on first read.
func (s *SettingsService) Get(ctx context.Context) (*settings.PaySchedule, *settings.AppSettings, error) {
	return s.settings.GetOrCreate(ctx)
}

// UpdatePaySchedule replaces the anchor payday and timezone. Timezone names
// that cannot be resolved locally are accepted as long as they are
// non-empty; hosts without tzdata still run, display handling falls back at
// use sites.
func (s *SettingsService) UpdatePaySchedule(ctx context.Context, anchorPaydayDate time.Time, timezone string) (*settings.PaySchedule, error) {
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return nil, ErrInvalidTimezone
	}

	ps, _, err := s.settings.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	ps.AnchorPaydayDate = schedule.DateOnly(anchorPaydayDate)
	ps.Timezone = timezone
	if err := s.settings.UpdatePaySchedule(ctx, ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// normalizeSummaryTime validates an HH:MM clock string and zero-pads it.
func normalizeSummaryTime(value string) (string, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return "", ErrInvalidSummaryTime
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", ErrInvalidSummaryTime
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", ErrInvalidSummaryTime
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", ErrInvalidSummaryTime
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// UpdateAppSettings validates and applies an app-settings update.
func (s *SettingsService) UpdateAppSettings(ctx context.Context, update AppSettingsUpdate) (*settings.AppSettings, error) {
	if update.DueSoonDays < 0 {
		return nil, ErrNegativeDueSoon
	}
	summaryTime, err := normalizeSummaryTime(update.DailySummaryTime)
	if err != nil {
		return nil, err
	}

	_, as, err := s.settings.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	as.DueSoonDays = update.DueSoonDays
	as.DailySummaryTime = summaryTime
	as.TelegramEnabled = update.TelegramEnabled
	as.TelegramBotToken = nullString(update.TelegramBotToken)
	as.TelegramChatID = nullString(update.TelegramChatID)
	if err := s.settings.UpdateAppSettings(ctx, as); err != nil {
		return nil, err
	}
	return as, nil
}

func nullString(value string) sql.NullString {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: trimmed, Valid: true}
}
