package service

import (
	"context"
	"sync"
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"

	"github.com/google/uuid"
)

// ProductCache caches products by id
type ProductCache interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	SetProduct(ctx context.Context, p *models.Product, ttl time.Duration) error
	InvalidateProducts(ctx context.Context, ids ...int64) error
}

// Locker hands out expiring, token-owned locks
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventPublisher publishes product events
type EventPublisher interface {
	PublishProductEvent(ctx context.Context, event *models.ProductEvent) error
}

type noopCache struct{}

func (noopCache) GetProduct(context.Context, int64) (*models.Product, error) { return nil, nil }

func (noopCache) SetProduct(context.Context, *models.Product, time.Duration) error { return nil }

func (noopCache) InvalidateProducts(context.Context, ...int64) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishProductEvent(context.Context, *models.ProductEvent) error { return nil }

// LocalLocker is an in-process Locker for single-instance deployments
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localLock
	now   func() time.Time
}

type localLock struct {
	token   string
	expires time.Time
}

// NewLocalLocker creates a new LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]localLock), now: time.Now}
}

// AcquireLock takes key unless a live lock holds it
func (l *LocalLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expires) {
		return "", false, nil
	}
	token := uuid.New().String()
	l.locks[key] = localLock{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

// ReleaseLock frees key if token still owns it
func (l *LocalLocker) ReleaseLock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[key]; ok && held.token == token {
		delete(l.locks, key)
	}
	return nil
}
