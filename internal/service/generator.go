package service

import (
	"fmt"
	"iter"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
)

// GenerateSlots возвращает ленивую последовательность времён начала слотов
// date@start, date@start+interval, ... Последний неполный интервал
// отбрасывается: слот должен целиком помещаться в окно.
// Время строится по настенным часам врача в loc, без приведения к UTC;
// несуществующие из-за перевода часов моменты пропускаются.
func GenerateSlots(date model.Date, start, end model.Clock, intervalMinutes int, loc *time.Location) (iter.Seq[time.Time], error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s must be before end %s", model.ErrInvalidWindow, start, end)
	}
	if intervalMinutes <= 0 {
		return nil, fmt.Errorf("%w: %d minutes", model.ErrInvalidInterval, intervalMinutes)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: empty date", model.ErrInvalidWindow)
	}
	if loc == nil {
		loc = time.UTC
	}

	first, last := start.Minutes(), end.Minutes()

	return func(yield func(time.Time) bool) {
		for m := first; m+intervalMinutes <= last; m += intervalMinutes {
			t := time.Date(date.Year, date.Month, date.Day, 0, m, 0, 0, loc)
			// Время из перехода на летнее время не существует: time.Date сдвигает его вперёд
			if t.Hour()*60+t.Minute() != m {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}, nil
}

// CountSlots сколько слотов поместится в окно
func CountSlots(start, end model.Clock, intervalMinutes int) int {
	if intervalMinutes <= 0 || !start.Before(end) {
		return 0
	}
	return (end.Minutes() - start.Minutes()) / intervalMinutes
}
