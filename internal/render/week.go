// Package render картинка недельного расписания врача (PNG)
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Размеры и отступы
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 100
	leftLabelsWidth  = 80
	legendWidth      = 120
	dayPaddingX      = 8
	minSlotHeight    = 8.0
	slotBorderRadius = 6.0
	shadowOffset     = 3.0
	daysInWeek       = 7
	hourPadding      = 1
	defaultMinHour   = 8
	defaultMaxHour   = 18
	maxLabelLen      = 20
)

// Цветовая схема
var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLabelColor   = color.RGBA{110, 115, 120, 200}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	todayBgColor     = color.NRGBA{255, 99, 71, 125}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{220, 220, 220, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}

	slotAvailableColor    = color.RGBA{133, 193, 85, 220}
	slotReservedColor     = color.RGBA{255, 182, 193, 255}
	slotCompletedColor    = color.RGBA{158, 158, 158, 200}
	slotDefaultColor      = color.RGBA{220, 220, 220, 200}
	slotTextColor         = color.RGBA{20, 24, 28, 230}
	slotReservedTextColor = color.RGBA{120, 40, 50, 255}
	slotShadowColor       = color.RGBA{0, 0, 0, 20}
)

// Week неделя врача для отрисовки. Время слотов показывается в Location.
type Week struct {
	Start    model.Date // понедельник
	Location *time.Location
	Slots    []*model.Slot
	Now      time.Time
}

type hourRange struct {
	start int
	end   int
	total int
}

type canvas struct {
	dc         *gg.Context
	week       Week
	hours      hourRange
	dayWidth   int
	dayHeight  int
	cellHeight float64
}

// WeekPNG рисует сетку Пн-Вс с часами слева и слотами по статусам.
// Встроенный шрифт basicfont содержит только ASCII, поэтому подписи латиницей.
func WeekPNG(week Week) ([]byte, error) {
	if week.Location == nil {
		week.Location = time.UTC
	}
	if week.Now.IsZero() {
		week.Now = time.Now()
	}

	c := &canvas{
		dc:        gg.NewContext(imageWidth, imageHeight),
		week:      week,
		hours:     calculateHourRange(week.Slots, week.Location),
		dayWidth:  (imageWidth - leftLabelsWidth - legendWidth) / daysInWeek,
		dayHeight: imageHeight - headerHeight,
	}
	c.cellHeight = float64(c.dayHeight) / float64(c.hours.total)
	c.dc.SetFontFace(basicfont.Face7x13)

	c.dc.SetColor(bgColor)
	c.dc.Clear()

	c.drawHeader()
	c.drawHourLabels()
	c.drawDays()
	c.drawCurrentTimeLine()
	c.drawLegend()

	var buf bytes.Buffer
	if err := c.dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// calculateHourRange часы с первого до последнего слота плюс отступ
func calculateHourRange(slots []*model.Slot, loc *time.Location) hourRange {
	minHour, maxHour := 24, 0

	for _, slot := range slots {
		start := slot.StartTime.In(loc)
		end := slot.EndTime().In(loc)

		endH := end.Hour()
		if end.Minute() > 0 {
			endH++
		}
		if end.Day() != start.Day() {
			endH = 24
		}
		minHour = min(minHour, start.Hour())
		maxHour = max(maxHour, endH)
	}

	if minHour == 24 {
		minHour, maxHour = defaultMinHour, defaultMaxHour
	}

	start := max(minHour-hourPadding, 0)
	end := min(maxHour+hourPadding, 24)

	return hourRange{start: start, end: end, total: end - start}
}

func (c *canvas) drawHeader() {
	from := c.week.Start
	to := model.DateOf(from.Time().AddDate(0, 0, daysInWeek-1), time.UTC)

	c.dc.SetColor(textColor)
	c.dc.DrawStringAnchored(fmt.Sprintf("%s - %s (%s)", from, to, c.week.Location), 20, float64(headerHeight)/4, 0, 0.5)
}

func (c *canvas) drawHourLabels() {
	c.dc.SetColor(hourLabelColor)
	for i := 0; i <= c.hours.total; i++ {
		y := float64(headerHeight) + float64(i)*c.cellHeight
		c.dc.DrawStringAnchored(fmt.Sprintf("%02d:00", c.hours.start+i), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func (c *canvas) drawDays() {
	today := model.DateOf(c.week.Now, c.week.Location)
	byDay := make(map[model.Date][]*model.Slot)
	for _, slot := range c.week.Slots {
		day := model.DateOf(slot.StartTime, c.week.Location)
		byDay[day] = append(byDay[day], slot)
	}

	for i := 0; i < daysInWeek; i++ {
		date := model.DateOf(c.week.Start.Time().AddDate(0, 0, i), time.UTC)
		x := float64(leftLabelsWidth + i*c.dayWidth)
		y := float64(headerHeight)

		switch {
		case date == today:
			c.dc.SetColor(todayBgColor)
		case i%2 == 0:
			c.dc.SetColor(evenDayColor)
		default:
			c.dc.SetColor(oddDayColor)
		}
		c.dc.DrawRectangle(x, y, float64(c.dayWidth), float64(c.dayHeight))
		c.dc.Fill()

		c.dc.SetColor(textColor)
		label := fmt.Sprintf("%s %02d.%02d", date.Time().Weekday().String()[:3], date.Day, int(date.Month))
		c.dc.DrawStringAnchored(label, x+float64(c.dayWidth)/2, y-12, 0.5, 0)

		c.dc.SetLineWidth(0.3)
		c.dc.SetColor(hourLineColor)
		for h := 0; h <= c.hours.total; h++ {
			hy := y + float64(h)*c.cellHeight
			c.dc.DrawLine(x, hy, x+float64(c.dayWidth), hy)
			c.dc.Stroke()
		}

		for _, slot := range byDay[date] {
			c.drawSlot(slot, x, y)
		}
	}
}

func (c *canvas) drawSlot(slot *model.Slot, x, y float64) {
	start := slot.StartTime.In(c.week.Location)
	startHour := float64(start.Hour()) + float64(start.Minute())/60
	endHour := startHour + float64(slot.DurationMinutes)/60

	slotY := y + (startHour-float64(c.hours.start))*c.cellHeight
	slotHeight := max((endHour-startHour)*c.cellHeight, minSlotHeight)
	slotWidth := float64(c.dayWidth) - dayPaddingX*2
	fill := slotColor(slot.Status)

	// Тень
	c.dc.SetColor(slotShadowColor)
	c.dc.DrawRoundedRectangle(x+dayPaddingX+shadowOffset, slotY+2+shadowOffset, slotWidth, slotHeight-4, slotBorderRadius)
	c.dc.Fill()

	c.dc.SetColor(fill)
	c.dc.DrawRoundedRectangle(x+dayPaddingX, slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	c.dc.Fill()

	c.dc.SetColor(darkenColor(fill, 0.8))
	c.dc.SetLineWidth(1)
	c.dc.DrawRoundedRectangle(x+dayPaddingX, slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	c.dc.Stroke()

	text := slotTextColor
	if slot.IsReserved() {
		text = slotReservedTextColor
	}

	c.dc.SetColor(text)
	txtX := x + dayPaddingX + 8
	txtY := slotY + 16
	c.dc.DrawStringAnchored(start.Format("15:04"), txtX, txtY, 0, 0)

	if label := slotLabel(slot); label != "" && slotHeight > 25 {
		c.dc.DrawStringAnchored(label, txtX, txtY+14, 0, 0)
	}
}

// slotLabel исследование занятого слота, обрезанное по ширине
func slotLabel(slot *model.Slot) string {
	if slot.IsAvailable() || slot.StudyID == "" {
		return ""
	}
	label := slot.StudyID
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen-3] + "..."
	}
	return label
}

func slotColor(status model.SlotStatus) color.RGBA {
	switch status {
	case model.SlotStatusAvailable:
		return slotAvailableColor
	case model.SlotStatusReserved:
		return slotReservedColor
	case model.SlotStatusCompleted:
		return slotCompletedColor
	default:
		return slotDefaultColor
	}
}

func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

// drawCurrentTimeLine красная линия "сейчас", если текущая неделя
func (c *canvas) drawCurrentTimeLine() {
	now := c.week.Now.In(c.week.Location)
	from, to := model.WeekRange(c.week.Start, c.week.Location)
	if now.Before(from) || !now.Before(to) {
		return
	}

	hour := float64(now.Hour()) + float64(now.Minute())/60
	if hour < float64(c.hours.start) || hour > float64(c.hours.end) {
		return
	}

	y := float64(headerHeight) + (hour-float64(c.hours.start))*c.cellHeight
	c.dc.SetColor(currentTimeColor)
	c.dc.SetLineWidth(2)
	c.dc.DrawLine(float64(leftLabelsWidth), y, float64(leftLabelsWidth+daysInWeek*c.dayWidth), y)
	c.dc.Stroke()
}

func (c *canvas) drawLegend() {
	x := float64(leftLabelsWidth + daysInWeek*c.dayWidth + 10)
	y := float64(imageHeight) - 78

	items := []struct {
		label string
		clr   color.Color
	}{
		{"Available", slotAvailableColor},
		{"Reserved", slotReservedColor},
		{"Completed", slotCompletedColor},
	}

	const boxW, boxH = 20.0, 14.0
	for _, item := range items {
		c.dc.SetColor(item.clr)
		c.dc.DrawRoundedRectangle(x, y, boxW, boxH, 3)
		c.dc.Fill()

		c.dc.SetColor(textColor)
		c.dc.DrawStringAnchored(item.label, x+boxW+8, y+boxH/2, 0, 0.5)
		y += boxH + 14
	}
}
