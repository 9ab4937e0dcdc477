package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	bookingserrors "resourcebooking/internal/bookings/errors"
	"resourcebooking/pkg/db"
	"resourcebooking/pkg/db/postgres"
	"resourcebooking/pkg/model"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	dialect = goqu.Dialect("postgres")

	bookingColumns = []any{
		"id", "resource_id", "start_time", "end_time",
		"booked_by", "purpose", "version", "created_at",
	}
	chronologicalOrder = []exp.OrderedExpression{
		goqu.C("start_time").Asc(),
		goqu.C("id").Asc(),
	}
)

type postgresBookingRepository struct {
	db           *sqlx.DB
	txManager    db.TransactionManager
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewPostgresBookingRepository(conn *sqlx.DB, readTimeout, writeTimeout time.Duration) BookingRepository {
	return &postgresBookingRepository{
		db:           conn,
		txManager:    postgres.NewTransactionManager(conn),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (r *postgresBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if _, err := uuid.Parse(booking.ResourceID); err != nil {
		return bookingserrors.ErrResourceNotFound
	}

	booking.ID = uuid.New().String()
	booking.Version = 1
	booking.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	query, args, err := dialect.Insert(TableName).Prepared(true).Rows(goqu.Record{
		"id":          booking.ID,
		"resource_id": booking.ResourceID,
		"start_time":  booking.StartTime,
		"end_time":    booking.EndTime,
		"booked_by":   booking.BookedBy,
		"purpose":     booking.Purpose,
		"version":     booking.Version,
		"created_at":  booking.CreatedAt,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build booking insert: %w", err)
	}

	if _, err := postgres.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		booking.ID = ""
		return translateWriteError("create", err)
	}
	return nil
}

func (r *postgresBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	query, args, err := dialect.From(TableName).Prepared(true).
		Select(bookingColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	var booking model.Booking
	if err := postgres.Conn(ctx, r.db).GetContext(ctx, &booking, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return normalize(&booking), nil
}

func (r *postgresBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if _, err := uuid.Parse(booking.ID); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, booking.ID)
	}
	if _, err := uuid.Parse(booking.ResourceID); err != nil {
		return bookingserrors.ErrResourceNotFound
	}

	query, args, err := dialect.Update(TableName).Prepared(true).
		Set(goqu.Record{
			"resource_id": booking.ResourceID,
			"start_time":  booking.StartTime,
			"end_time":    booking.EndTime,
			"booked_by":   booking.BookedBy,
			"purpose":     booking.Purpose,
			"version":     goqu.L("version + 1"),
		}).
		Where(goqu.C("id").Eq(booking.ID), goqu.C("version").Eq(booking.Version)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build booking update: %w", err)
	}

	result, err := postgres.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return translateWriteError("update", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return bookingserrors.ErrConcurrentModification
	}

	booking.Version++
	return nil
}

func (r *postgresBookingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	query, args, err := dialect.Delete(TableName).Prepared(true).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build booking delete: %w", err)
	}

	result, err := postgres.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *postgresBookingRepository) FindOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*model.Booking, error) {
	if _, err := uuid.Parse(resourceID); err != nil {
		return []*model.Booking{}, nil
	}

	ds := dialect.From(TableName).Prepared(true).
		Select(bookingColumns...).
		Where(
			goqu.C("resource_id").Eq(resourceID),
			goqu.C("start_time").Lt(end),
			goqu.C("end_time").Gt(start),
		).
		Order(chronologicalOrder...)
	return r.selectBookings(ctx, ds)
}

func (r *postgresBookingRepository) Find(ctx context.Context, query model.BookingQuery, limit int, offset int64) ([]*model.Booking, error) {
	ds := dialect.From(TableName).Prepared(true).
		Select(bookingColumns...).
		Where(queryConditions(query)...).
		Order(chronologicalOrder...).
		Limit(uint(limit)).
		Offset(uint(offset))
	return r.selectBookings(ctx, ds)
}

func (r *postgresBookingRepository) Count(ctx context.Context, query model.BookingQuery) (int64, error) {
	ds := dialect.From(TableName).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(queryConditions(query)...)
	return r.count(ctx, ds)
}

func (r *postgresBookingRepository) FindByResource(ctx context.Context, resourceID string) ([]*model.Booking, error) {
	if _, err := uuid.Parse(resourceID); err != nil {
		return []*model.Booking{}, nil
	}

	ds := dialect.From(TableName).Prepared(true).
		Select(bookingColumns...).
		Where(goqu.C("resource_id").Eq(resourceID)).
		Order(chronologicalOrder...)
	return r.selectBookings(ctx, ds)
}

func (r *postgresBookingRepository) CountByResource(ctx context.Context, resourceID string) (int64, error) {
	if _, err := uuid.Parse(resourceID); err != nil {
		return 0, nil
	}

	ds := dialect.From(TableName).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(goqu.C("resource_id").Eq(resourceID))
	return r.count(ctx, ds)
}

func (r *postgresBookingRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *postgresBookingRepository) selectBookings(ctx context.Context, ds *goqu.SelectDataset) ([]*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	bookings := []*model.Booking{}
	if err := postgres.Conn(ctx, r.db).SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	for _, b := range bookings {
		normalize(b)
	}
	return bookings, nil
}

func (r *postgresBookingRepository) count(ctx context.Context, ds *goqu.SelectDataset) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build booking count: %w", err)
	}

	var count int64
	if err := postgres.Conn(ctx, r.db).GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// queryConditions translates a listing query into SQL predicates.
func queryConditions(query model.BookingQuery) []exp.Expression {
	var conditions []exp.Expression

	if query.ResourceIDs != nil {
		ids := make([]string, 0, len(query.ResourceIDs))
		for _, id := range query.ResourceIDs {
			if _, err := uuid.Parse(id); err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			conditions = append(conditions, goqu.L("FALSE"))
		} else {
			conditions = append(conditions, goqu.C("resource_id").In(ids))
		}
	}
	if query.StartFrom != nil {
		conditions = append(conditions, goqu.C("start_time").Gte(*query.StartFrom))
	}
	if query.StartBefore != nil {
		conditions = append(conditions, goqu.C("start_time").Lt(*query.StartBefore))
	}

	return conditions
}

func translateWriteError(op string, err error) error {
	switch {
	case postgres.HasCode(err, postgres.ExclusionViolation):
		return bookingserrors.ErrTimeConflict
	case postgres.HasCode(err, postgres.ForeignKeyViolation):
		return bookingserrors.ErrResourceNotFound
	case postgres.HasCode(err, postgres.CheckConstraintFailed):
		return bookingserrors.ErrInvalidTimeRange
	case postgres.HasCode(err, postgres.SerializationFailure):
		return bookingserrors.ErrConcurrentModification
	}
	return fmt.Errorf("failed to %s booking: %w", op, err)
}
