package consultation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/mediqueue/internal/db"
	"github.com/hackgods/mediqueue/internal/events"
)

type MemoryRepository struct {
	mu            sync.RWMutex
	byID          map[uuid.UUID]Consultation
	byAppointment map[uuid.UUID]uuid.UUID
	rec           events.Recorder
}

// NewMemoryRepository returns an empty store recording CONSULTATION_ADDED to
// rec, which may be nil.
func NewMemoryRepository(rec events.Recorder) *MemoryRepository {
	return &MemoryRepository{
		byID:          make(map[uuid.UUID]Consultation),
		byAppointment: make(map[uuid.UUID]uuid.UUID),
		rec:           rec,
	}
}

func (m *MemoryRepository) Create(ctx context.Context, c *Consultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byAppointment[c.AppointmentID]; ok {
		return ErrDuplicateConsultation
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()

	if m.rec != nil {
		ev, err := addedEvent(c)
		if err != nil {
			return err
		}
		if err := m.rec.Record(ctx, ev); err != nil {
			return err
		}
	}

	m.byID[c.ID] = *c
	m.byAppointment[c.AppointmentID] = c.ID
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Consultation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byID[id]
	if !ok {
		return nil, ErrConsultationNotFound
	}
	return &c, nil
}

func (m *MemoryRepository) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*Consultation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byAppointment[appointmentID]
	if !ok {
		return nil, ErrConsultationNotFound
	}
	c := m.byID[id]
	return &c, nil
}

func (m *MemoryRepository) List(_ context.Context, limit, offset int) ([]Consultation, error) {
	m.mu.RLock()
	out := make([]Consultation, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	lim, off := db.Page(limit, offset)
	if int(off) >= len(out) {
		return []Consultation{}, nil
	}
	out = out[off:]
	if len(out) > int(lim) {
		out = out[:lim]
	}
	return out, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[id]
	if !ok {
		return ErrConsultationNotFound
	}
	delete(m.byID, id)
	delete(m.byAppointment, c.AppointmentID)
	return nil
}
