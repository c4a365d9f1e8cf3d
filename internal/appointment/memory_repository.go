package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/mediqueue/internal/db"
	"github.com/hackgods/mediqueue/internal/events"
)

// bucket holds one window's appointments. Its mutex is the serialization
// boundary for reservations on that window and guards every appointment in it.
type bucket struct {
	mu        sync.Mutex
	lastToken int
	appts     []*Appointment
}

// MemoryRepository keeps appointments in process. The outer lock only guards
// the indexes; reservations on different windows never contend on it for
// longer than a map lookup. Lifecycle events go to rec, when set, under the
// bucket lock of the change they describe.
type MemoryRepository struct {
	mu      sync.RWMutex
	buckets map[SlotKey]*bucket
	byID    map[uuid.UUID]*bucket
	rec     events.Recorder
}

// NewMemoryRepository returns an empty store. rec may be nil.
func NewMemoryRepository(rec events.Recorder) *MemoryRepository {
	return &MemoryRepository{
		buckets: make(map[SlotKey]*bucket),
		byID:    make(map[uuid.UUID]*bucket),
		rec:     rec,
	}
}

func (m *MemoryRepository) record(ctx context.Context, a *Appointment) error {
	if m.rec == nil {
		return nil
	}
	ev, err := lifecycleEvent(a)
	if err != nil {
		return err
	}
	return m.rec.Record(ctx, ev)
}

func (m *MemoryRepository) bucketFor(key SlotKey) *bucket {
	m.mu.RLock()
	b, ok := m.buckets[key]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.buckets[key]; !ok {
		b = &bucket{}
		m.buckets[key] = b
	}
	return b
}

func (m *MemoryRepository) Reserve(ctx context.Context, res Reservation) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := m.bucketFor(res.Key())

	b.mu.Lock()
	occupied := 0
	for _, a := range b.appts {
		if a.Occupies() {
			occupied++
		}
	}
	if occupied >= res.Capacity {
		b.mu.Unlock()
		return nil, ErrSlotFull
	}

	now := time.Now()
	a := &Appointment{
		ID:          uuid.New(),
		PatientID:   res.PatientID,
		DoctorID:    res.DoctorID,
		Date:        res.Date,
		SlotStart:   res.SlotStart,
		SlotEnd:     res.SlotEnd,
		TokenNumber: b.lastToken + 1,
		Status:      StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.record(ctx, a); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.lastToken = a.TokenNumber
	b.appts = append(b.appts, a)
	out := *a
	b.mu.Unlock()

	m.mu.Lock()
	m.byID[a.ID] = b
	m.mu.Unlock()

	return &out, nil
}

func (m *MemoryRepository) lookup(id uuid.UUID) (*bucket, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.byID[id]
	return b, ok
}

func (b *bucket) find(id uuid.UUID) *Appointment {
	for _, a := range b.appts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	b, ok := m.lookup(id)
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.find(id)
	if a == nil {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (m *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	b, ok := m.lookup(id)
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.find(id)
	if a == nil || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	out.Status = to
	out.UpdatedAt = time.Now()
	if err := m.record(ctx, &out); err != nil {
		return nil, err
	}
	*a = out
	return &out, nil
}

// snapshot copies the appointments of every bucket matching keep.
func (m *MemoryRepository) snapshot(match func(SlotKey) bool, keep func(Appointment) bool) []Appointment {
	m.mu.RLock()
	var bs []*bucket
	for k, b := range m.buckets {
		if match(k) {
			bs = append(bs, b)
		}
	}
	m.mu.RUnlock()

	var out []Appointment
	for _, b := range bs {
		b.mu.Lock()
		for _, a := range b.appts {
			if keep(*a) {
				out = append(out, *a)
			}
		}
		b.mu.Unlock()
	}
	sortAppointments(out)
	return out
}

func sortAppointments(as []Appointment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].SlotStart.Equal(as[j].SlotStart) {
			return as[i].SlotStart.Before(as[j].SlotStart)
		}
		if as[i].DoctorID != as[j].DoctorID {
			return as[i].DoctorID.String() < as[j].DoctorID.String()
		}
		return as[i].TokenNumber < as[j].TokenNumber
	})
}

func (m *MemoryRepository) ListByWindow(_ context.Context, doctorID uuid.UUID, slotStart time.Time) ([]Appointment, error) {
	key := KeyOf(doctorID, slotStart)
	return m.snapshot(
		func(k SlotKey) bool { return k == key },
		func(Appointment) bool { return true },
	), nil
}

func (m *MemoryRepository) ListByDoctorDate(_ context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	return m.snapshot(
		func(k SlotKey) bool { return k.DoctorID == doctorID },
		func(a Appointment) bool { return a.Date == date },
	), nil
}

func (m *MemoryRepository) ListByPatientDate(_ context.Context, patientID uuid.UUID, date string) ([]Appointment, error) {
	return m.snapshot(
		func(SlotKey) bool { return true },
		func(a Appointment) bool { return a.PatientID == patientID && a.Date == date },
	), nil
}

func (m *MemoryRepository) List(_ context.Context, f Filter) ([]Appointment, error) {
	all := m.snapshot(
		func(k SlotKey) bool { return f.DoctorID == uuid.Nil || k.DoctorID == f.DoctorID },
		func(a Appointment) bool {
			if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
				return false
			}
			if f.Date != "" && a.Date != f.Date {
				return false
			}
			if f.Status != "" && a.Status != f.Status {
				return false
			}
			return true
		},
	)

	lim, off := db.Page(f.Limit, f.Offset)
	if int(off) >= len(all) {
		return []Appointment{}, nil
	}
	all = all[off:]
	if len(all) > int(lim) {
		all = all[:lim]
	}
	return all, nil
}
