package settings

import (
	"context"
	"database/sql"
	"time"
)

// PaySchedule is the single-row pay-cycle configuration: the anchor payday
// the biweekly calendar aligns to, plus the display timezone.
type PaySchedule struct {
	ID               int64
	AnchorPaydayDate time.Time
	Timezone         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AppSettings is the single-row application configuration consumed by the
// notification jobs.
type AppSettings struct {
	ID               int64
	DueSoonDays      int
	DailySummaryTime string // HH:MM, local to PaySchedule.Timezone
	TelegramEnabled  bool
	TelegramBotToken sql.NullString
	TelegramChatID   sql.NullString
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Defaults used when the settings rows do not exist yet.
const (
	DefaultTimezone         = "America/Los_Angeles"
	DefaultDueSoonDays      = 5
	DefaultDailySummaryTime = "07:00"
)

// DefaultAnchorPaydayDate is the anchor used before the user configures one.
var DefaultAnchorPaydayDate = time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

// Repository provides lazy-create-on-first-read access to the settings rows.
// Services load configuration through GetOrCreate once per operation rather
// than holding ambient global state.
type Repository interface {
	GetOrCreate(ctx context.Context) (*PaySchedule, *AppSettings, error)
	UpdatePaySchedule(ctx context.Context, ps *PaySchedule) error
	UpdateAppSettings(ctx context.Context, as *AppSettings) error
}
