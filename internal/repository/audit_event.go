package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/org-admin/internal/domain/model"
)

// AuditFilter — фильтры выборки журнала. Пустые поля не фильтруют.
type AuditFilter struct {
	Realm  string
	Action model.AuditAction
}

// AuditEventRepository — журнал аудита (таблица audit_events, только добавление).
type AuditEventRepository interface {
	// Record добавляет событие.
	Record(ctx context.Context, ev *model.AuditEvent) error
	// GetByID возвращает событие по UUID.
	GetByID(ctx context.Context, id string) (*model.AuditEvent, error)
	// List возвращает события, новые первыми.
	List(ctx context.Context, filter AuditFilter, limit, offset int) ([]*model.AuditEvent, error)
	// Count возвращает количество событий по фильтру.
	Count(ctx context.Context, filter AuditFilter) (int, error)
}

type auditEventRepo struct {
	db DBTX
}

// NewAuditEventRepository создаёт репозиторий журнала аудита.
func NewAuditEventRepository(db DBTX) AuditEventRepository {
	return &auditEventRepo{db: db}
}

const auditColumns = `id, occurred_at, action, realm, subject, outcome, step, detail`

func scanAuditEvent(row pgx.Row) (*model.AuditEvent, error) {
	ev := &model.AuditEvent{}
	err := row.Scan(
		&ev.ID, &ev.OccurredAt, &ev.Action, &ev.Realm,
		&ev.Subject, &ev.Outcome, &ev.Step, &ev.Detail,
	)
	return ev, err
}

func (r *auditEventRepo) Record(ctx context.Context, ev *model.AuditEvent) error {
	query := `
		INSERT INTO audit_events (id, occurred_at, action, realm, subject, outcome, step, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		ev.ID, ev.OccurredAt, ev.Action, ev.Realm,
		ev.Subject, ev.Outcome, ev.Step, ev.Detail,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: событие %s уже записано", ErrConflict, ev.ID)
		}
		return fmt.Errorf("ошибка записи события аудита: %w", err)
	}
	return nil
}

func (r *auditEventRepo) GetByID(ctx context.Context, id string) (*model.AuditEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_events WHERE id = $1`, auditColumns)
	ev, err := scanAuditEvent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения события аудита: %w", err)
	}
	return ev, nil
}

// buildWhere собирает WHERE по фильтру и возвращает следующий номер аргумента.
func (f AuditFilter) buildWhere() (string, []any, int) {
	var conditions []string
	var args []any
	argNum := 1

	if f.Realm != "" {
		conditions = append(conditions, fmt.Sprintf("realm = $%d", argNum))
		args = append(args, f.Realm)
		argNum++
	}
	if f.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argNum))
		args = append(args, f.Action)
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args, argNum
}

func (r *auditEventRepo) List(ctx context.Context, filter AuditFilter, limit, offset int) ([]*model.AuditEvent, error) {
	where, args, argNum := filter.buildWhere()

	query := fmt.Sprintf(`
		SELECT %s
		FROM audit_events
		%s
		ORDER BY occurred_at DESC, id
		LIMIT $%d OFFSET $%d`, auditColumns, where, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки журнала аудита: %w", err)
	}
	defer rows.Close()

	var events []*model.AuditEvent
	for rows.Next() {
		ev, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования события аудита: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *auditEventRepo) Count(ctx context.Context, filter AuditFilter) (int, error) {
	where, args, _ := filter.buildWhere()

	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM audit_events %s`, where)
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта событий аудита: %w", err)
	}
	return count, nil
}
