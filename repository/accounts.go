package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// postgres unique_violation
const pgUniqueViolation = "23505"

// AccountRepository implements identity.Directory using Bun.
//
// The accounts table is keyed by email. The id column carries no index, so
// FindByID is a full table scan: this is the directory's performance
// ceiling until a secondary index is added.
type AccountRepository struct {
	db  bun.IDB
	now func() time.Time
}

var _ identity.Directory = (*AccountRepository)(nil)

// NewAccountRepository creates a new repository.
func NewAccountRepository(db bun.IDB) *AccountRepository {
	return &AccountRepository{
		db:  db,
		now: time.Now,
	}
}

// WithClock overrides the timestamp source
func (r *AccountRepository) WithClock(now func() time.Time) *AccountRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// CreateSchema creates the accounts table if it does not exist
func CreateSchema(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*identity.Account)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return identity.WrapStoreError(err, "failed to create accounts table")
	}
	return nil
}

// FindByEmail implements identity.Directory.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID implements identity.Directory.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*identity.Account, error) {
	return r.findOne(ctx, "id", id)
}

// Insert implements identity.Directory.
func (r *AccountRepository) Insert(ctx context.Context, account *identity.Account) (*identity.Account, error) {
	if err := account.ValidateInsert(); err != nil {
		return nil, err
	}

	record := account.Clone()
	now := r.now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Profile == nil {
		record.Profile = identity.Profile{}
	}

	_, err := r.db.NewInsert().
		Model(record).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, identity.ErrDuplicateEmail
		}
		return nil, identity.WrapStoreError(err, "failed to insert account")
	}

	return record, nil
}

// Update implements identity.Directory.
func (r *AccountRepository) Update(ctx context.Context, account *identity.Account, fields ...identity.Field) (*identity.Account, error) {
	fields, err := identity.UpdateFields(account, fields...)
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		// writing false would unverify the email, skip it
		if f == identity.FieldEmailVerified && !account.Status.EmailVerified {
			continue
		}
		columns = append(columns, string(f))
	}
	columns = append(columns, "updated_at")

	record := account.Clone()
	record.UpdatedAt = r.now().UTC()
	if record.Profile == nil {
		record.Profile = identity.Profile{}
	}

	res, err := r.db.NewUpdate().
		Model(record).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, identity.WrapStoreError(err, "failed to update account")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, identity.WrapStoreError(err, "failed to read update result")
	}

	if affected == 0 {
		return nil, identity.ErrNotFound
	}

	return r.FindByEmail(ctx, record.Email)
}

func (r *AccountRepository) findOne(ctx context.Context, column, value string) (*identity.Account, error) {
	record := &identity.Account{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, identity.WrapStoreError(err, "failed to find account by "+column)
	}
	return record, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
