package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/aida/store"
)

const projectColumns = `id, name, description, color, archived, created_ts`

func (d *DB) CreateProject(ctx context.Context, create *store.Project) (*store.Project, error) {
	err := d.db.QueryRowContext(ctx,
		`INSERT INTO projects (name, description, color, archived, created_ts) VALUES (`+placeholders(5)+`) RETURNING id`,
		create.Name, create.Description, create.Color, create.Archived, create.CreatedTs,
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create project")
	}
	return create, nil
}

func scanProject(row scanner) (*store.Project, error) {
	var project store.Project
	if err := row.Scan(&project.ID, &project.Name, &project.Description, &project.Color, &project.Archived, &project.CreatedTs); err != nil {
		return nil, err
	}
	return &project, nil
}

func (d *DB) GetProjectByName(ctx context.Context, name string) (*store.Project, error) {
	project, err := scanProject(d.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE LOWER(name) = LOWER($1)`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return project, errors.Wrap(err, "failed to get project")
}

func (d *DB) ListProjects(ctx context.Context, includeArchived bool) ([]*store.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	if !includeArchived {
		query += ` WHERE NOT archived`
	}
	query += ` ORDER BY name`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list projects")
	}
	defer rows.Close()

	list := []*store.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan project")
		}
		list = append(list, project)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) CreateTask(ctx context.Context, create *store.Task) (*store.Task, error) {
	stmt := `INSERT INTO tasks (title, description, priority, status, project_id, due_ts, reminder_ts,
			ha_list_name, ha_item_id, created_ts, updated_ts)
		VALUES (` + placeholders(11) + `)
		RETURNING id`
	err := d.db.QueryRowContext(ctx, stmt,
		create.Title,
		create.Description,
		create.Priority,
		create.Status,
		int64PtrValue(create.ProjectID),
		int64PtrValue(create.DueTs),
		int64PtrValue(create.ReminderTs),
		create.HAListName,
		create.HAItemID,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create task")
	}
	return d.GetTask(ctx, create.ID)
}

const taskSelect = `SELECT t.id, t.title, t.description, t.priority, t.status, t.project_id, COALESCE(p.name, ''),
		t.due_ts, t.reminder_ts, t.reminder_sent, t.ha_list_name, t.ha_item_id, t.ha_synced_ts,
		t.created_ts, t.updated_ts, t.completed_ts
	FROM tasks t
	LEFT JOIN projects p ON p.id = t.project_id`

const taskOrder = ` ORDER BY CASE t.priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
		t.due_ts ASC NULLS LAST, t.created_ts`

func scanTask(row scanner) (*store.Task, error) {
	var task store.Task
	var projectID, dueTs, reminderTs, syncedTs, completedTs sql.NullInt64
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Priority,
		&task.Status,
		&projectID,
		&task.ProjectName,
		&dueTs,
		&reminderTs,
		&task.ReminderSent,
		&task.HAListName,
		&task.HAItemID,
		&syncedTs,
		&task.CreatedTs,
		&task.UpdatedTs,
		&completedTs,
	); err != nil {
		return nil, err
	}
	task.ProjectID = nullInt64Ptr(projectID)
	task.DueTs = nullInt64Ptr(dueTs)
	task.ReminderTs = nullInt64Ptr(reminderTs)
	task.HASyncedTs = nullInt64Ptr(syncedTs)
	task.CompletedTs = nullInt64Ptr(completedTs)
	return &task, nil
}

func (d *DB) GetTask(ctx context.Context, id int64) (*store.Task, error) {
	task, err := scanTask(d.db.QueryRowContext(ctx, taskSelect+` WHERE t.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, errors.Wrap(err, "failed to get task")
}

func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.Status != nil {
		where, args = append(where, "t.status = "+placeholder(len(args)+1)), append(args, *find.Status)
	}
	if find.Open {
		where = append(where, "t.status IN ('pending', 'in_progress')")
	}
	if find.ProjectID != nil {
		where, args = append(where, "t.project_id = "+placeholder(len(args)+1)), append(args, *find.ProjectID)
	}
	if find.Priority != nil {
		where, args = append(where, "t.priority = "+placeholder(len(args)+1)), append(args, *find.Priority)
	}
	if find.DueBefore != nil {
		where, args = append(where, "t.due_ts IS NOT NULL AND t.due_ts <= "+placeholder(len(args)+1)), append(args, *find.DueBefore)
	}

	query := taskSelect + ` WHERE ` + strings.Join(where, " AND ") + taskOrder
	if find.Limit > 0 {
		query += ` LIMIT ` + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}
	return d.queryTasks(ctx, query, args...)
}

func (d *DB) queryTasks(ctx context.Context, query string, args ...any) ([]*store.Task, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	defer rows.Close()

	list := []*store.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan task")
		}
		list = append(list, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) FindTaskByTitle(ctx context.Context, title string) (*store.Task, error) {
	task, err := scanTask(d.db.QueryRowContext(ctx,
		taskSelect+` WHERE t.status = 'pending' AND LOWER(t.title) = LOWER($1) ORDER BY t.created_ts DESC, t.id DESC LIMIT 1`,
		title))
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to find task")
	}

	task, err = scanTask(d.db.QueryRowContext(ctx,
		taskSelect+` WHERE t.status = 'pending' AND t.title ILIKE $1 ORDER BY t.created_ts DESC, t.id DESC LIMIT 1`,
		"%"+title+"%"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, errors.Wrap(err, "failed to find task")
}

func (d *DB) CompleteTask(ctx context.Context, id int64, completedTs int64) (*store.Task, error) {
	result, err := d.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'completed', completed_ts = $1, updated_ts = $1 WHERE id = $2`, completedTs, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to complete task")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, nil
	}
	return d.GetTask(ctx, id)
}

func (d *DB) MarkTaskSynced(ctx context.Context, id int64, itemID string, syncedTs int64) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE tasks SET ha_item_id = $1, ha_synced_ts = $2, updated_ts = $2 WHERE id = $3`,
		itemID, syncedTs, id)
	return errors.Wrap(err, "failed to mark task synced")
}

func (d *DB) CountTasks(ctx context.Context, status *store.TaskStatus) (int, error) {
	var count int
	var err error
	if status == nil {
		err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count)
	} else {
		err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status = $1`, *status).Scan(&count)
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to count tasks")
	}
	return count, nil
}

func (d *DB) CreateReminder(ctx context.Context, create *store.Reminder) (*store.Reminder, error) {
	err := d.db.QueryRowContext(ctx,
		`INSERT INTO reminders (task_id, remind_ts, type, sent, created_ts) VALUES ($1, $2, $3, FALSE, $4) RETURNING id`,
		create.TaskID, create.RemindTs, create.Type, create.CreatedTs,
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create reminder")
	}
	return create, nil
}

func (d *DB) ListDueReminders(ctx context.Context, before int64) ([]*store.Reminder, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT r.id, r.task_id, r.remind_ts, r.type, r.sent, r.created_ts, t.title
		FROM reminders r
		JOIN tasks t ON t.id = r.task_id
		WHERE NOT r.sent AND r.remind_ts <= $1 AND t.status IN ('pending', 'in_progress')
		ORDER BY r.remind_ts, r.id`, before)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due reminders")
	}
	defer rows.Close()

	list := []*store.Reminder{}
	for rows.Next() {
		var reminder store.Reminder
		if err := rows.Scan(&reminder.ID, &reminder.TaskID, &reminder.RemindTs, &reminder.Type, &reminder.Sent, &reminder.CreatedTs, &reminder.TaskTitle); err != nil {
			return nil, errors.Wrap(err, "failed to scan reminder")
		}
		list = append(list, &reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) MarkReminderSent(ctx context.Context, id int64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE reminders SET sent = TRUE WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "failed to mark reminder sent")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET reminder_sent = TRUE WHERE id = (SELECT task_id FROM reminders WHERE id = $1)`, id); err != nil {
		return errors.Wrap(err, "failed to mark task reminder sent")
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
