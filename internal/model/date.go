package model

import (
	"fmt"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Date гражданская дата (без часового пояса) в календаре врача
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate разбирает дату в формате YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf возвращает гражданскую дату момента t в зоне loc
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// At собирает момент времени из даты и времени суток в зоне loc
func (d Date) At(c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, c.Minutes(), 0, 0, loc)
}

// WeekStart понедельник недели, в которую попадает date
func WeekStart(date Date) Date {
	t := date.Time()
	offset := (int(t.Weekday()) + 6) % 7
	return DateOf(t.AddDate(0, 0, -offset), time.UTC)
}

// WeekRange границы недели [начало понедельника, начало следующего понедельника) в зоне loc
func WeekRange(date Date, loc *time.Location) (time.Time, time.Time) {
	start := WeekStart(date)
	next := DateOf(start.Time().AddDate(0, 0, 7), time.UTC)
	return start.At(Clock{}, loc), next.At(Clock{}, loc)
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time возвращает полночь даты в UTC; используется для колонки DATE
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock время суток с точностью до минуты
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock разбирает время в формате HH:MM
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes количество минут от начала суток
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) Before(other Clock) bool {
	return c.Minutes() < other.Minutes()
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
