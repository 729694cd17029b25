package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
)

// StatusDisplay emoji и текст статуса слота
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetStatusDisplay возвращает emoji и текст для статуса слота
func GetStatusDisplay(status model.SlotStatus) StatusDisplay {
	displays := map[model.SlotStatus]StatusDisplay{
		model.SlotStatusAvailable: {"🟢", "Свободен"},
		model.SlotStatusReserved:  {"🔴", "Занят"},
		model.SlotStatusCancelled: {"⚫️", "Отменён"},
		model.SlotStatusCompleted: {"✔️", "Приём состоялся"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Неизвестно"}
}

// FormatDateTime форматирует дату и время
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatDuration форматирует длительность в минутах
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}

// FormatNotification текст уведомления врачу; время в его часовом поясе
func FormatNotification(n model.Notification, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder

	switch n.Kind {
	case model.NotificationReserved:
		b.WriteString("📅 Новая запись\n\n")
	case model.NotificationCancelled:
		b.WriteString("❌ Запись отменена\n\n")
	default:
		b.WriteString("ℹ️ Изменение слота\n\n")
	}

	if n.Slot != nil {
		status := GetStatusDisplay(n.Slot.Status)
		fmt.Fprintf(&b, "🕐 %s (%s)\n", FormatDateTime(n.Slot.StartTime.In(loc)), FormatDuration(n.Slot.DurationMinutes))
		fmt.Fprintf(&b, "%s %s\n", status.Emoji, status.Text)
	}

	if n.Subject != nil {
		fmt.Fprintf(&b, "👤 %s\n", n.Subject.DisplayName())
	}

	if n.Slot != nil {
		if n.Slot.StudyID != "" {
			fmt.Fprintf(&b, "🔬 %s\n", n.Slot.StudyID)
		}
		if n.Kind == model.NotificationReserved && n.Slot.ConsultReason != "" {
			fmt.Fprintf(&b, "📝 %s\n", n.Slot.ConsultReason)
		}
		if n.Kind == model.NotificationCancelled && n.Reason != "" {
			fmt.Fprintf(&b, "Причина: %s\n", n.Reason)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
