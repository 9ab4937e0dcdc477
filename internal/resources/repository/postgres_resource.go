package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	resourceserrors "resourcebooking/internal/resources/errors"
	"resourcebooking/pkg/db"
	"resourcebooking/pkg/db/postgres"
	"resourcebooking/pkg/model"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	dialect = goqu.Dialect("postgres")

	resourceColumns = []any{
		"id", "name", "description", "location",
		"capacity", "is_available", "version", "created_at",
	}

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

type postgresResourceRepository struct {
	db           *sqlx.DB
	txManager    db.TransactionManager
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewPostgresResourceRepository(conn *sqlx.DB, readTimeout, writeTimeout time.Duration) ResourceRepository {
	return &postgresResourceRepository{
		db:           conn,
		txManager:    postgres.NewTransactionManager(conn),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (r *postgresResourceRepository) Create(ctx context.Context, resource *model.Resource) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	resource.ID = uuid.New().String()
	resource.Version = 1
	resource.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	query, args, err := dialect.Insert(TableName).Prepared(true).Rows(goqu.Record{
		"id":           resource.ID,
		"name":         resource.Name,
		"description":  resource.Description,
		"location":     resource.Location,
		"capacity":     resource.Capacity,
		"is_available": resource.IsAvailable,
		"version":      resource.Version,
		"created_at":   resource.CreatedAt,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build resource insert: %w", err)
	}

	if _, err := postgres.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		resource.ID = ""
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

func (r *postgresResourceRepository) FindByID(ctx context.Context, id string) (*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", resourceserrors.ErrInvalidID, id)
	}

	query, args, err := dialect.From(TableName).Prepared(true).
		Select(resourceColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build resource query: %w", err)
	}

	var resource model.Resource
	if err := postgres.Conn(ctx, r.db).GetContext(ctx, &resource, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resourceserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}

	resource.CreatedAt = resource.CreatedAt.UTC()
	return &resource, nil
}

func (r *postgresResourceRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Resource, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*model.Resource{}, nil
	}

	ds := dialect.From(TableName).Prepared(true).
		Select(resourceColumns...).
		Where(goqu.C("id").In(valid))
	return r.selectResources(ctx, ds)
}

func (r *postgresResourceRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, error) {
	ds := dialect.From(TableName).Prepared(true).
		Select(resourceColumns...).
		Order(goqu.C("name").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset))
	return r.selectResources(ctx, ds)
}

func (r *postgresResourceRepository) FindIDsByName(ctx context.Context, fragment string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	query, args, err := dialect.From(TableName).Prepared(true).
		Select("id").
		Where(goqu.C("name").ILike("%" + likeEscaper.Replace(fragment) + "%")).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build resource name query: %w", err)
	}

	ids := []string{}
	if err := postgres.Conn(ctx, r.db).SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find resources by name: %w", err)
	}
	return ids, nil
}

func (r *postgresResourceRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	query, args, err := dialect.From(TableName).Prepared(true).
		Select(goqu.COUNT("*")).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build resource count: %w", err)
	}

	var count int64
	if err := postgres.Conn(ctx, r.db).GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
	}
	return count, nil
}

func (r *postgresResourceRepository) Update(ctx context.Context, resource *model.Resource) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if _, err := uuid.Parse(resource.ID); err != nil {
		return fmt.Errorf("%w: %s", resourceserrors.ErrInvalidID, resource.ID)
	}

	query, args, err := dialect.Update(TableName).Prepared(true).
		Set(goqu.Record{
			"name":         resource.Name,
			"description":  resource.Description,
			"location":     resource.Location,
			"capacity":     resource.Capacity,
			"is_available": resource.IsAvailable,
			"version":      goqu.L("version + 1"),
		}).
		Where(goqu.C("id").Eq(resource.ID), goqu.C("version").Eq(resource.Version)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build resource update: %w", err)
	}

	result, err := postgres.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return resourceserrors.ErrConcurrentModification
	}

	resource.Version++
	return nil
}

func (r *postgresResourceRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", resourceserrors.ErrInvalidID, id)
	}

	query, args, err := dialect.Delete(TableName).Prepared(true).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build resource delete: %w", err)
	}

	result, err := postgres.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		if postgres.HasCode(err, postgres.ForeignKeyViolation) {
			return resourceserrors.ErrHasBookings
		}
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return resourceserrors.ErrNotFound
	}
	return nil
}

func (r *postgresResourceRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *postgresResourceRepository) selectResources(ctx context.Context, ds *goqu.SelectDataset) ([]*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build resource query: %w", err)
	}

	resources := []*model.Resource{}
	if err := postgres.Conn(ctx, r.db).SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find resources: %w", err)
	}
	for _, resource := range resources {
		resource.CreatedAt = resource.CreatedAt.UTC()
	}
	return resources, nil
}
