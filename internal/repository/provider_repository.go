package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProviderRepository справочник врачей
type ProviderRepository struct {
	*base.Repository
}

func NewProviderRepository(pool *pgxpool.Pool) *ProviderRepository {
	return &ProviderRepository{Repository: base.NewRepository(pool)}
}

// Resolve получает врача по ID; nil, nil если его нет
func (r *ProviderRepository) Resolve(ctx context.Context, providerID string) (*model.Provider, error) {
	query := `
		SELECT id, name, specialty, time_zone, telegram_chat_id, active
		FROM providers
		WHERE id = $1
	`

	var (
		p      model.Provider
		chatID *int64
	)
	err := r.QueryRow(ctx, query, providerID).Scan(
		&p.ID,
		&p.Name,
		&p.Specialty,
		&p.TimeZone,
		&chatID,
		&p.Active,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get provider: %w", base.MapError(err))
	}

	if chatID != nil {
		p.TelegramChatID = *chatID
	}

	return &p, nil
}

// ListBySpecialty активные врачи специальности
func (r *ProviderRepository) ListBySpecialty(ctx context.Context, specialty string) ([]*model.Provider, error) {
	query := `
		SELECT id, name, specialty, time_zone, telegram_chat_id, active
		FROM providers
		WHERE lower(specialty) = lower($1) AND active
		ORDER BY id
	`

	rows, err := r.Query(ctx, query, specialty)
	if err != nil {
		return nil, fmt.Errorf("list providers by specialty: %w", err)
	}
	defer rows.Close()

	providers := make([]*model.Provider, 0)
	for rows.Next() {
		var (
			p      model.Provider
			chatID *int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Specialty, &p.TimeZone, &chatID, &p.Active); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		if chatID != nil {
			p.TelegramChatID = *chatID
		}
		providers = append(providers, &p)
	}

	return providers, rows.Err()
}
