package audit

import (
	"context"
	"errors"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/internal/service"
)

// Tee записывает событие во все журналы; ошибки объединяются
type Tee []service.AuditLog

func (t Tee) Record(ctx context.Context, event model.AuditEvent) error {
	var errs []error
	for _, log := range t {
		if err := log.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
