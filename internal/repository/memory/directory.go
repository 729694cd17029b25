package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/Freeeeeet/turnos/internal/model"
)

// Directory справочник врачей и исследований в памяти
type Directory struct {
	mu        sync.RWMutex
	providers map[string]model.Provider
	studies   map[string]model.Study
}

func NewDirectory() *Directory {
	return &Directory{
		providers: make(map[string]model.Provider),
		studies:   make(map[string]model.Study),
	}
}

func (d *Directory) PutProvider(p model.Provider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.providers[p.ID] = p
}

func (d *Directory) PutStudy(st model.Study) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.studies[st.ID] = st
}

// Providers адаптер под service.ProviderDirectory
func (d *Directory) Providers() *ProviderDirectory {
	return &ProviderDirectory{d: d}
}

// Studies адаптер под service.StudyDirectory
func (d *Directory) Studies() *StudyDirectory {
	return &StudyDirectory{d: d}
}

type ProviderDirectory struct {
	d *Directory
}

func (p *ProviderDirectory) Resolve(_ context.Context, providerID string) (*model.Provider, error) {
	p.d.mu.RLock()
	defer p.d.mu.RUnlock()

	provider, ok := p.d.providers[providerID]
	if !ok {
		return nil, nil
	}
	return &provider, nil
}

func (p *ProviderDirectory) ListBySpecialty(_ context.Context, specialty string) ([]*model.Provider, error) {
	p.d.mu.RLock()
	defer p.d.mu.RUnlock()

	out := make([]*model.Provider, 0)
	for _, provider := range p.d.providers {
		if provider.Active && strings.EqualFold(provider.Specialty, specialty) {
			provider := provider
			out = append(out, &provider)
		}
	}
	slices.SortFunc(out, func(a, b *model.Provider) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

type StudyDirectory struct {
	d *Directory
}

func (s *StudyDirectory) Resolve(_ context.Context, studyID string) (*model.Study, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	study, ok := s.d.studies[studyID]
	if !ok {
		return nil, nil
	}
	return &study, nil
}
