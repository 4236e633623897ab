package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryDirectory is an in-process Directory keyed by email. Records are
// copied on the way in and out.
type MemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	now      func() time.Time
}

var _ Directory = (*MemoryDirectory)(nil)

// NewMemoryDirectory returns an empty directory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		accounts: map[string]*Account{},
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source
func (d *MemoryDirectory) WithClock(now func() time.Time) *MemoryDirectory {
	if now != nil {
		d.now = now
	}
	return d
}

func (d *MemoryDirectory) FindByEmail(ctx context.Context, email string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapStoreError(err, "find by email cancelled")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	acc, ok := d.accounts[email]
	if !ok {
		return nil, ErrNotFound
	}
	return acc.Clone(), nil
}

// FindByID walks every record, O(n) in the number of accounts.
func (d *MemoryDirectory) FindByID(ctx context.Context, id string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapStoreError(err, "find by id cancelled")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, acc := range d.accounts {
		if acc.ID == id {
			return acc.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDirectory) Insert(ctx context.Context, account *Account) (*Account, error) {
	if err := account.ValidateInsert(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, WrapStoreError(err, "insert cancelled")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.accounts[account.Email]; ok {
		return nil, ErrDuplicateEmail
	}

	record := account.Clone()
	now := d.now()
	record.CreatedAt = now
	record.UpdatedAt = now
	d.accounts[record.Email] = record

	return record.Clone(), nil
}

func (d *MemoryDirectory) Update(ctx context.Context, account *Account, fields ...Field) (*Account, error) {
	fields, err := UpdateFields(account, fields...)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, WrapStoreError(err, "update cancelled")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	record, ok := d.accounts[account.Email]
	if !ok {
		return nil, ErrNotFound
	}

	for _, f := range fields {
		f.Apply(record, account)
	}
	record.UpdatedAt = d.now()

	return record.Clone(), nil
}

// Len returns the number of stored accounts
func (d *MemoryDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts)
}
