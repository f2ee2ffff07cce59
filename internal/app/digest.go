package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paytrack/internal/domain/payment"
)

// Digest is a rendered notification for one category of scheduled
// occurrences: the in-app title/body pair plus the Telegram MarkdownV2 text.
type Digest struct {
	Count        int
	Total        decimal.Decimal
	Title        string
	Body         string
	TelegramText string
}

var markdownV2Escapes = []string{
	"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!",
}

// escapeMarkdownV2 escapes every character Telegram's MarkdownV2 parse mode
// treats as structural.
func escapeMarkdownV2(value string) string {
	escaped := value
	for _, ch := range markdownV2Escapes {
		escaped = strings.ReplaceAll(escaped, ch, "\\"+ch)
	}
	return escaped
}

func formatMoney(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

func sumExpected(rows []*payment.OccurrenceRow) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.ExpectedAmount)
	}
	return total
}

// occurrenceGroupLines renders rows grouped by due date, one bold date
// header per group.
func occurrenceGroupLines(rows []*payment.OccurrenceRow) []string {
	grouped := make(map[string][]*payment.OccurrenceRow)
	for _, row := range rows {
		key := row.DueDate.Format("2006-01-02")
		grouped[key] = append(grouped[key], row)
	}

	dates := make([]string, 0, len(grouped))
	for due := range grouped {
		dates = append(dates, due)
	}
	sort.Strings(dates)

	var lines []string
	for _, due := range dates {
		lines = append(lines, fmt.Sprintf("*%s*", escapeMarkdownV2(due)))
		for _, row := range grouped[due] {
			lines = append(lines, fmt.Sprintf("- %s : %s",
				escapeMarkdownV2(row.PaymentName),
				escapeMarkdownV2(formatMoney(row.ExpectedAmount)),
			))
		}
	}
	return lines
}

func buildDueSoonDigest(rows []*payment.OccurrenceRow, dueSoonEnd time.Time) Digest {
	total := sumExpected(rows)
	header := fmt.Sprintf("*Due Soon* \\(%d items\\)\nDue by *%s* | Total %s",
		len(rows),
		escapeMarkdownV2(dueSoonEnd.Format("2006-01-02")),
		escapeMarkdownV2(formatMoney(total)),
	)
	return Digest{
		Count: len(rows),
		Total: total,
		Title: fmt.Sprintf("Due Soon (%d items)", len(rows)),
		Body: fmt.Sprintf("%d scheduled payments due by %s totaling %s.",
			len(rows), dueSoonEnd.Format("2006-01-02"), formatMoney(total)),
		TelegramText: strings.Join(append([]string{header, ""}, occurrenceGroupLines(rows)...), "\n"),
	}
}

func buildOverdueDigest(rows []*payment.OccurrenceRow) Digest {
	total := sumExpected(rows)
	header := fmt.Sprintf("*Overdue* \\(%d items\\)\nTotal %s",
		len(rows), escapeMarkdownV2(formatMoney(total)))
	return Digest{
		Count: len(rows),
		Total: total,
		Title: fmt.Sprintf("Overdue (%d items)", len(rows)),
		Body: fmt.Sprintf("%d scheduled payments are overdue totaling %s.",
			len(rows), formatMoney(total)),
		TelegramText: strings.Join(append([]string{header, ""}, occurrenceGroupLines(rows)...), "\n"),
	}
}

func buildDailySummaryDigest(
	today time.Time,
	dueTodayRows, dueSoonRows, overdueRows []*payment.OccurrenceRow,
	unreadCount int64,
	timezoneName string,
) Digest {
	dueTodayTotal := sumExpected(dueTodayRows)
	lines := []string{
		fmt.Sprintf("*Daily Summary* | %s", escapeMarkdownV2(today.Format("2006-01-02"))),
		fmt.Sprintf("Timezone: `%s`", escapeMarkdownV2(timezoneName)),
		"",
		fmt.Sprintf("- Due today: *%d* \\(%s\\)", len(dueTodayRows), escapeMarkdownV2(formatMoney(dueTodayTotal))),
		fmt.Sprintf("- Due soon: *%d* \\(%s\\)", len(dueSoonRows), escapeMarkdownV2(formatMoney(sumExpected(dueSoonRows)))),
		fmt.Sprintf("- Overdue: *%d* \\(%s\\)", len(overdueRows), escapeMarkdownV2(formatMoney(sumExpected(overdueRows)))),
		fmt.Sprintf("- Unread notifications: *%d*", unreadCount),
	}
	if len(dueTodayRows) > 0 {
		lines = append(lines, "", "*Due Today Items*")
		lines = append(lines, occurrenceGroupLines(dueTodayRows)...)
	}
	return Digest{
		Count: len(dueTodayRows),
		Total: dueTodayTotal,
		Title: "Daily Summary",
		Body: fmt.Sprintf("%d payments due today totaling %s. Unread notifications: %d. Timezone: %s.",
			len(dueTodayRows), formatMoney(dueTodayTotal), unreadCount, timezoneName),
		TelegramText: strings.Join(lines, "\n"),
	}
}
