package app

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"paytrack/internal/domain/notification"
	"paytrack/internal/domain/payment"
	"paytrack/internal/domain/schedule"
	"paytrack/internal/domain/settings"
	idb "paytrack/internal/infra/database"
)

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// --- payment repository ---

type fakePaymentRepo struct {
	payments map[int64]*payment.Payment
	nextID   int64
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[int64]*payment.Payment), nextID: 1}
}

func (r *fakePaymentRepo) Create(_ context.Context, p *payment.Payment) error {
	p.ID = r.nextID
	r.nextID++
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *fakePaymentRepo) GetByID(_ context.Context, id int64) (*payment.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, idb.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) Update(_ context.Context, p *payment.Payment) error {
	if _, ok := r.payments[p.ID]; !ok {
		return idb.ErrPaymentNotFound
	}
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *fakePaymentRepo) ListActive(_ context.Context) ([]*payment.Payment, error) {
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePaymentRepo) ListAll(_ context.Context) ([]*payment.Payment, error) {
	var out []*payment.Payment
	for _, p := range r.payments {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- occurrence repository ---

type fakeOccurrenceRepo struct {
	rows   map[int64]*payment.Occurrence
	keys   map[payment.OccurrenceKey]int64
	names  map[int64]string // payment id -> payment name, for joined views
	nextID int64

	// beforeBulkInsert, when set, runs between the caller's existence check
	// and the bulk insert, simulating a concurrent writer.
	beforeBulkInsert func()
}

func newFakeOccurrenceRepo() *fakeOccurrenceRepo {
	return &fakeOccurrenceRepo{
		rows:   make(map[int64]*payment.Occurrence),
		keys:   make(map[payment.OccurrenceKey]int64),
		names:  make(map[int64]string),
		nextID: 1,
	}
}

func (r *fakeOccurrenceRepo) insertLocked(o *payment.Occurrence) error {
	key := o.Key()
	if _, exists := r.keys[key]; exists {
		return idb.ErrDuplicateOccurrence
	}
	o.ID = r.nextID
	r.nextID++
	cp := *o
	r.rows[o.ID] = &cp
	r.keys[key] = o.ID
	return nil
}

func (r *fakeOccurrenceRepo) Insert(_ context.Context, o *payment.Occurrence) error {
	return r.insertLocked(o)
}

func (r *fakeOccurrenceRepo) BulkInsert(_ context.Context, occurrences []*payment.Occurrence) error {
	if r.beforeBulkInsert != nil {
		hook := r.beforeBulkInsert
		r.beforeBulkInsert = nil
		hook()
	}

	// All-or-nothing, like the transactional implementation.
	seen := make(map[payment.OccurrenceKey]struct{}, len(occurrences))
	for _, o := range occurrences {
		key := o.Key()
		if _, exists := r.keys[key]; exists {
			return idb.ErrDuplicateOccurrence
		}
		if _, dup := seen[key]; dup {
			return idb.ErrDuplicateOccurrence
		}
		seen[key] = struct{}{}
	}
	for _, o := range occurrences {
		if err := r.insertLocked(o); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeOccurrenceRepo) GetByID(_ context.Context, id int64) (*payment.Occurrence, error) {
	o, ok := r.rows[id]
	if !ok {
		return nil, idb.ErrOccurrenceNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOccurrenceRepo) Update(_ context.Context, o *payment.Occurrence) error {
	if _, ok := r.rows[o.ID]; !ok {
		return idb.ErrOccurrenceNotFound
	}
	cp := *o
	r.rows[o.ID] = &cp
	return nil
}

func (r *fakeOccurrenceRepo) ListKeysInRange(_ context.Context, start, end time.Time) (map[payment.OccurrenceKey]struct{}, error) {
	out := make(map[payment.OccurrenceKey]struct{})
	for _, o := range r.rows {
		if !o.DueDate.Before(start) && !o.DueDate.After(end) {
			out[o.Key()] = struct{}{}
		}
	}
	return out, nil
}

func (r *fakeOccurrenceRepo) DeleteScheduledFrom(_ context.Context, paymentID int64, from time.Time) (int64, error) {
	var count int64
	for id, o := range r.rows {
		if o.PaymentID == paymentID && o.Status == payment.StatusScheduled && !o.DueDate.Before(from) {
			delete(r.keys, o.Key())
			delete(r.rows, id)
			count++
		}
	}
	return count, nil
}

func (r *fakeOccurrenceRepo) CancelScheduledFrom(_ context.Context, paymentID int64, from time.Time) (int64, error) {
	var count int64
	for _, o := range r.rows {
		if o.PaymentID == paymentID && o.Status == payment.StatusScheduled && !o.DueDate.Before(from) {
			o.Status = payment.StatusCanceled
			count++
		}
	}
	return count, nil
}

func (r *fakeOccurrenceRepo) rowView(o *payment.Occurrence) *payment.OccurrenceRow {
	return &payment.OccurrenceRow{
		OccurrenceID:   o.ID,
		PaymentID:      o.PaymentID,
		PaymentName:    r.names[o.PaymentID],
		DueDate:        o.DueDate,
		ExpectedAmount: o.ExpectedAmount,
		Status:         o.Status,
		AmountPaid:     o.AmountPaid,
		PaidDate:       o.PaidDate,
	}
}

func sortRowViews(rows []*payment.OccurrenceRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].DueDate.Equal(rows[j].DueDate) {
			return rows[i].DueDate.Before(rows[j].DueDate)
		}
		if rows[i].PaymentName != rows[j].PaymentName {
			return rows[i].PaymentName < rows[j].PaymentName
		}
		return rows[i].OccurrenceID < rows[j].OccurrenceID
	})
}

func (r *fakeOccurrenceRepo) ListScheduled(_ context.Context) ([]*payment.OccurrenceRow, error) {
	var out []*payment.OccurrenceRow
	for _, o := range r.rows {
		if o.Status == payment.StatusScheduled {
			out = append(out, r.rowView(o))
		}
	}
	sortRowViews(out)
	return out, nil
}

func (r *fakeOccurrenceRepo) ListInCycle(_ context.Context, start, end time.Time) ([]*payment.OccurrenceRow, error) {
	var out []*payment.OccurrenceRow
	for _, o := range r.rows {
		if o.Status == payment.StatusCanceled {
			continue
		}
		if !o.DueDate.Before(start) && !o.DueDate.After(end) {
			out = append(out, r.rowView(o))
		}
	}
	sortRowViews(out)
	return out, nil
}

func (r *fakeOccurrenceRepo) ListHistoryPage(_ context.Context, filters payment.HistoryFilters, limit, offset int, sortBy payment.HistorySort) ([]*payment.OccurrenceRow, int64, error) {
	inDateRange := func(o *payment.Occurrence) bool {
		if filters.StartDate == nil && filters.EndDate == nil {
			return true
		}
		matches := func(d time.Time) bool {
			if filters.StartDate != nil && d.Before(*filters.StartDate) {
				return false
			}
			if filters.EndDate != nil && d.After(*filters.EndDate) {
				return false
			}
			return true
		}
		if matches(o.DueDate) {
			return true
		}
		return o.PaidDate.Valid && matches(schedule.DateOnly(o.PaidDate.Time))
	}

	var out []*payment.OccurrenceRow
	for _, o := range r.rows {
		if filters.Status != nil && o.Status != *filters.Status {
			continue
		}
		if filters.Query != "" && !strings.Contains(strings.ToLower(r.names[o.PaymentID]), strings.ToLower(filters.Query)) {
			continue
		}
		if !inDateRange(o) {
			continue
		}
		out = append(out, r.rowView(o))
	}

	switch sortBy {
	case payment.HistorySortDueAsc:
		sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	case payment.HistorySortPaidDesc:
		sort.Slice(out, func(i, j int) bool {
			if out[i].PaidDate.Valid != out[j].PaidDate.Valid {
				return out[i].PaidDate.Valid
			}
			return out[i].PaidDate.Time.After(out[j].PaidDate.Time)
		})
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].DueDate.After(out[j].DueDate) })
	}

	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

// --- job repository ---

type fakeJobRepo struct {
	claims map[string]struct{}
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{claims: make(map[string]struct{})}
}

func (r *fakeJobRepo) TryMarkRun(_ context.Context, jobName string, runDate time.Time) (bool, error) {
	key := jobName + "|" + runDate.Format("2006-01-02")
	if _, taken := r.claims[key]; taken {
		return false, nil
	}
	r.claims[key] = struct{}{}
	return true, nil
}

// --- settings repository ---

type fakeSettingsRepo struct {
	ps *settings.PaySchedule
	as *settings.AppSettings
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{
		ps: &settings.PaySchedule{
			ID:               1,
			AnchorPaydayDate: settings.DefaultAnchorPaydayDate,
			Timezone:         "UTC",
		},
		as: &settings.AppSettings{
			ID:               1,
			DueSoonDays:      settings.DefaultDueSoonDays,
			DailySummaryTime: settings.DefaultDailySummaryTime,
		},
	}
}

func (r *fakeSettingsRepo) GetOrCreate(_ context.Context) (*settings.PaySchedule, *settings.AppSettings, error) {
	ps := *r.ps
	as := *r.as
	return &ps, &as, nil
}

func (r *fakeSettingsRepo) UpdatePaySchedule(_ context.Context, ps *settings.PaySchedule) error {
	cp := *ps
	r.ps = &cp
	return nil
}

func (r *fakeSettingsRepo) UpdateAppSettings(_ context.Context, as *settings.AppSettings) error {
	cp := *as
	r.as = &cp
	return nil
}

// --- notification repository ---

type fakeNotificationRepo struct {
	notifications []*notification.Notification
	logs          []*notification.DeliveryLog
	slots         map[string]struct{}
	nextID        int64
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{slots: make(map[string]struct{}), nextID: 1}
}

func slotKey(t notification.Type, channel notification.Channel, bucketDate time.Time, dedupKey string) string {
	return string(t) + "|" + string(channel) + "|" + bucketDate.Format("2006-01-02") + "|" + dedupKey
}

func (r *fakeNotificationRepo) CreateNotification(_ context.Context, n *notification.Notification) error {
	n.ID = r.nextID
	r.nextID++
	cp := *n
	r.notifications = append(r.notifications, &cp)
	return nil
}

func (r *fakeNotificationRepo) ListNotifications(_ context.Context, filters notification.Filters, limit, offset int, _ notification.Sort) ([]*notification.Notification, error) {
	var out []*notification.Notification
	for _, n := range r.notifications {
		if filters.Type != "" && n.Type != filters.Type {
			continue
		}
		if filters.ReadState == notification.ReadStateRead && !n.IsRead {
			continue
		}
		if filters.ReadState == notification.ReadStateUnread && n.IsRead {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNotificationRepo) CountNotifications(ctx context.Context, filters notification.Filters) (int64, error) {
	rows, err := r.ListNotifications(ctx, filters, 0, 0, notification.SortNewest)
	return int64(len(rows)), err
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context) (int64, error) {
	var count int64
	for _, n := range r.notifications {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id int64, now time.Time) (*notification.Notification, error) {
	for _, n := range r.notifications {
		if n.ID == id {
			n.IsRead = true
			n.ReadAt.Valid = true
			n.ReadAt.Time = now
			cp := *n
			return &cp, nil
		}
	}
	return nil, idb.ErrNotificationNotFound
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, n := range r.notifications {
		if !n.IsRead {
			n.IsRead = true
			n.ReadAt.Valid = true
			n.ReadAt.Time = now
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) TryLogDelivery(_ context.Context, t notification.Type, channel notification.Channel, bucketDate time.Time, dedupKey string, occurrenceID *int64) (bool, error) {
	key := slotKey(t, channel, bucketDate, dedupKey)
	if _, taken := r.slots[key]; taken {
		return false, nil
	}
	r.slots[key] = struct{}{}
	log := &notification.DeliveryLog{
		ID:         r.nextID,
		Type:       t,
		Channel:    channel,
		BucketDate: bucketDate,
		DedupKey:   dedupKey,
		Status:     notification.DeliverySent,
	}
	r.nextID++
	if occurrenceID != nil {
		log.OccurrenceID.Valid = true
		log.OccurrenceID.Int64 = *occurrenceID
	}
	r.logs = append(r.logs, log)
	return true, nil
}

func (r *fakeNotificationRepo) CreateDeliveryLog(_ context.Context, l *notification.DeliveryLog) (*notification.DeliveryLog, error) {
	key := slotKey(l.Type, l.Channel, l.BucketDate, l.DedupKey)
	if _, taken := r.slots[key]; taken {
		return nil, nil
	}
	r.slots[key] = struct{}{}
	l.ID = r.nextID
	r.nextID++
	cp := *l
	r.logs = append(r.logs, &cp)
	out := cp
	return &out, nil
}

func (r *fakeNotificationRepo) FinalizeDeliveryLog(_ context.Context, id int64, status notification.DeliveryStatus, errorMessage, telegramMessageID string, deliveredAt *time.Time) error {
	for _, l := range r.logs {
		if l.ID == id {
			l.Status = status
			l.ErrorMessage.Valid = errorMessage != ""
			l.ErrorMessage.String = errorMessage
			l.TelegramMessageID.Valid = telegramMessageID != ""
			l.TelegramMessageID.String = telegramMessageID
			if deliveredAt != nil {
				l.DeliveredAt.Valid = true
				l.DeliveredAt.Time = *deliveredAt
			}
			return nil
		}
	}
	return idb.ErrNotificationNotFound
}

func (r *fakeNotificationRepo) ListDeliveryLogs(_ context.Context, filters notification.LogFilters, limit, offset int, _ notification.Sort) ([]*notification.DeliveryLog, error) {
	var out []*notification.DeliveryLog
	for _, l := range r.logs {
		if filters.Type != "" && l.Type != filters.Type {
			continue
		}
		if filters.Channel != "" && l.Channel != filters.Channel {
			continue
		}
		if filters.Status != "" && l.Status != filters.Status {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNotificationRepo) CountDeliveryLogs(ctx context.Context, filters notification.LogFilters) (int64, error) {
	rows, err := r.ListDeliveryLogs(ctx, filters, 0, 0, notification.SortNewest)
	return int64(len(rows)), err
}

// --- telegram client ---

type sentMessage struct {
	chatID int64
	text   string
}

type fakeTelegramClient struct {
	sent []sentMessage
	// errs is consumed one per SendMessage call; nil entries mean success,
	// and an exhausted queue means success.
	errs []error
}

func (c *fakeTelegramClient) SendMessage(chatID int64, text string, _ *telebot.SendOptions) error {
	var err error
	if len(c.errs) > 0 {
		err = c.errs[0]
		c.errs = c.errs[1:]
	}
	if err != nil {
		return err
	}
	c.sent = append(c.sent, sentMessage{chatID: chatID, text: text})
	return nil
}
