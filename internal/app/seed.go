package app

import (
	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/internal/repository/memory"
)

// SeedDemo наполняет справочники для режима STORAGE_DRIVER=memory
func SeedDemo(dir *memory.Directory) {
	dir.PutProvider(model.Provider{
		ID:        "dr-garcia",
		Name:      "Dra. García",
		Specialty: "cardiology",
		TimeZone:  "America/Argentina/Buenos_Aires",
		Active:    true,
	})
	dir.PutProvider(model.Provider{
		ID:        "dr-lopez",
		Name:      "Dr. López",
		Specialty: "cardiology",
		TimeZone:  "America/Argentina/Buenos_Aires",
		Active:    true,
	})

	dir.PutStudy(model.Study{ID: "ecg", Label: "Electrocardiograma", Price: 1500000, Active: true})
	dir.PutStudy(model.Study{ID: "echo", Label: "Ecocardiograma", Price: 4500000, Active: true,
		PrepInstructions: "Traer estudios previos"})
}
