package directory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedRepository fronts a Repository with bounded, expiring lookups by id.
// Booking and queue queries resolve the same doctor on every request, and
// directory records change rarely.
type CachedRepository struct {
	Repository
	doctors  *expirable.LRU[uuid.UUID, Doctor]
	patients *expirable.LRU[uuid.UUID, Patient]
}

func NewCachedRepository(next Repository, size int, ttl time.Duration) *CachedRepository {
	if size <= 0 {
		size = 256
	}
	return &CachedRepository{
		Repository: next,
		doctors:    expirable.NewLRU[uuid.UUID, Doctor](size, nil, ttl),
		patients:   expirable.NewLRU[uuid.UUID, Patient](size, nil, ttl),
	}
}

func (c *CachedRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	if d, ok := c.doctors.Get(id); ok {
		return &d, nil
	}

	d, err := c.Repository.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	c.doctors.Add(id, *d)
	return d, nil
}

func (c *CachedRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := c.Repository.CreateDoctor(ctx, d); err != nil {
		return err
	}
	c.doctors.Remove(d.ID)
	return nil
}

func (c *CachedRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	if p, ok := c.patients.Get(id); ok {
		return &p, nil
	}

	p, err := c.Repository.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	c.patients.Add(id, *p)
	return p, nil
}

func (c *CachedRepository) CreatePatient(ctx context.Context, p *Patient) error {
	if err := c.Repository.CreatePatient(ctx, p); err != nil {
		return err
	}
	c.patients.Remove(p.ID)
	return nil
}
