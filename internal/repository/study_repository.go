package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// StudyRepository справочник исследований
type StudyRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewStudyRepository(pool *pgxpool.Pool, logger *zap.Logger) *StudyRepository {
	return &StudyRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// Resolve получает исследование по ID; nil, nil если его нет
func (r *StudyRepository) Resolve(ctx context.Context, studyID string) (*model.Study, error) {
	query := `
		SELECT id, label, price, active, prep_instructions
		FROM studies
		WHERE id = $1
	`

	var study model.Study
	err := r.QueryRow(ctx, query, studyID).Scan(
		&study.ID,
		&study.Label,
		&study.Price,
		&study.Active,
		&study.PrepInstructions,
	)
	if err != nil {
		if base.IsNotFound(err) {
			r.logger.Debug("Study not found", zap.String("study_id", studyID))
			return nil, nil
		}
		return nil, fmt.Errorf("get study: %w", base.MapError(err))
	}

	return &study, nil
}
