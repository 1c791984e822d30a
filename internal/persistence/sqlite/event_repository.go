package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/church-agenda/internal/persistence"
)

// wallClockLayout stores event times without an offset; they are read back in
// the pool's location.
const wallClockLayout = "2006-01-02T15:04:05"

const eventColumns = `id, title, description, start_at, end_at, all_day, visibility, category, creator_id, created_at, updated_at`

// EventRepository implements persistence.EventRepository using SQLite
type EventRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
	newID  func() string
	now    func() time.Time
}

// EventRepositoryOption customises an EventRepository.
type EventRepositoryOption func(*EventRepository)

// WithEventIDGenerator replaces the uuid id source.
func WithEventIDGenerator(fn func() string) EventRepositoryOption {
	return func(r *EventRepository) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithEventClock replaces the timestamp source.
func WithEventClock(fn func() time.Time) EventRepositoryOption {
	return func(r *EventRepository) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewEventRepository creates a new SQLite event repository
func NewEventRepository(pool *ConnectionPool, opts ...EventRepositoryOption) *EventRepository {
	repo := &EventRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// CreateEvent inserts a new event and returns the stored row.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	if err := r.validate(event); err != nil {
		return persistence.Event{}, err
	}

	now := r.now().UTC().Truncate(time.Second)
	event.ID = r.newID()
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.Visibility == "" {
		event.Visibility = "private"
	}

	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	err := r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, query,
			event.ID,
			event.Title,
			event.Description,
			r.formatWallClock(event.Start),
			r.formatWallClock(event.End),
			event.AllDay,
			event.Visibility,
			event.Category,
			event.CreatorID,
			event.CreatedAt.Format(time.RFC3339),
			event.UpdatedAt.Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return r.GetEvent(ctx, event.ID)
}

// UpdateEvent applies changes to an existing event inside one transaction.
func (r *EventRepository) UpdateEvent(ctx context.Context, id string, changes persistence.EventChanges) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	var updated persistence.Event
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			current, err := r.scanEvent(tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
			if err != nil {
				return err
			}

			next := applyChanges(current, changes)
			if err := r.validate(next); err != nil {
				return err
			}
			next.UpdatedAt = r.now().UTC().Truncate(time.Second)

			result, err := tx.ExecContext(ctx, `
				UPDATE events
				SET title = ?, description = ?, start_at = ?, end_at = ?, all_day = ?, visibility = ?, category = ?, updated_at = ?
				WHERE id = ?`,
				next.Title,
				next.Description,
				r.formatWallClock(next.Start),
				r.formatWallClock(next.End),
				next.AllDay,
				next.Visibility,
				next.Category,
				next.UpdatedAt.Format(time.RFC3339),
				id,
			)
			if err != nil {
				return err
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if rowsAffected == 0 {
				return persistence.ErrNotFound
			}
			updated = next
			return nil
		})
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return updated, nil
}

// GetEvent retrieves an event by ID from the database
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}
	event, err := r.scanEvent(r.pool.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

// ListEvents lists events matching the filter ordered by start time.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	query, args := r.buildListQuery(filter)

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	events := make([]persistence.Event, 0)
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

// DeleteEvent removes an event by ID.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

func (r *EventRepository) validate(event persistence.Event) error {
	if strings.TrimSpace(event.Title) == "" {
		return fmt.Errorf("%w: title is required", persistence.ErrConstraintViolation)
	}
	if event.End.Before(event.Start) {
		return fmt.Errorf("%w: end before start", persistence.ErrConstraintViolation)
	}
	switch event.Visibility {
	case "", "public", "private":
	default:
		return fmt.Errorf("%w: unknown visibility %q", persistence.ErrConstraintViolation, event.Visibility)
	}
	return nil
}

func (r *EventRepository) buildListQuery(filter persistence.EventFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.Visibility != nil {
		conditions = append(conditions, "visibility = ?")
		args = append(args, *filter.Visibility)
	}
	if filter.StartsAfter != nil {
		conditions = append(conditions, "end_at >= ?")
		args = append(args, r.formatWallClock(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "start_at < ?")
		args = append(args, r.formatWallClock(*filter.EndsBefore))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query + " ORDER BY start_at ASC, id ASC", args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *EventRepository) scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                persistence.Event
		startAt, endAt       string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&startAt,
		&endAt,
		&event.AllDay,
		&event.Visibility,
		&event.Category,
		&event.CreatorID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, err
	}

	if event.Start, err = time.ParseInLocation(wallClockLayout, startAt, r.pool.location); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse start_at: %w", err)
	}
	if event.End, err = time.ParseInLocation(wallClockLayout, endAt, r.pool.location); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse end_at: %w", err)
	}
	if event.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if event.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return event, nil
}

func (r *EventRepository) formatWallClock(t time.Time) string {
	return t.In(r.pool.location).Format(wallClockLayout)
}

func applyChanges(event persistence.Event, changes persistence.EventChanges) persistence.Event {
	if changes.Title != nil {
		event.Title = *changes.Title
	}
	if changes.Description != nil {
		event.Description = *changes.Description
	}
	if changes.Start != nil {
		event.Start = *changes.Start
	}
	if changes.End != nil {
		event.End = *changes.End
	}
	if changes.AllDay != nil {
		event.AllDay = *changes.AllDay
	}
	if changes.Visibility != nil {
		event.Visibility = *changes.Visibility
	}
	if changes.Category != nil {
		event.Category = *changes.Category
	}
	return event
}
