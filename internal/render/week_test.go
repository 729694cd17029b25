package render

import (
	"bytes"
	"image/png"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateHourRange(t *testing.T) {
	assert.Equal(t, hourRange{start: 7, end: 19, total: 12}, calculateHourRange(nil, time.UTC))

	slots := []*model.Slot{
		{StartTime: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), DurationMinutes: 30},
		{StartTime: time.Date(2024, 6, 11, 13, 30, 0, 0, time.UTC), DurationMinutes: 45},
	}
	assert.Equal(t, hourRange{start: 8, end: 16, total: 8}, calculateHourRange(slots, time.UTC))
}

func TestWeekPNG(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	start := time.Date(2024, 6, 10, 9, 0, 0, 0, loc)
	slots := []*model.Slot{
		{ID: uuid.New(), StartTime: start, DurationMinutes: 30, Status: model.SlotStatusAvailable},
		{ID: uuid.New(), StartTime: start.Add(time.Hour), DurationMinutes: 60, Status: model.SlotStatusReserved, StudyID: "ecocardiograma-doppler-color"},
	}

	data, err := WeekPNG(Week{
		Start:    model.Date{Year: 2024, Month: time.June, Day: 10},
		Location: loc,
		Slots:    slots,
		Now:      start.Add(90 * time.Minute),
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, imageWidth, img.Bounds().Dx())
	assert.Equal(t, imageHeight, img.Bounds().Dy())
}

func TestSlotLabel(t *testing.T) {
	assert.Empty(t, slotLabel(&model.Slot{Status: model.SlotStatusAvailable, StudyID: "S1"}))
	assert.Equal(t, "S1", slotLabel(&model.Slot{Status: model.SlotStatusReserved, StudyID: "S1"}))
	assert.Len(t, slotLabel(&model.Slot{Status: model.SlotStatusReserved, StudyID: "ecocardiograma-doppler-color"}), maxLabelLen)
}
