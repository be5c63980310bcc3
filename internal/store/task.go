package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gorber/veckopeng/internal/ledger"
	"github.com/gorber/veckopeng/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, title, description, reward, assigned_to, status, created_at, completed_at`

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var completedAt sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.Title, &t.Description, &t.Reward,
		&t.AssignedTo, &t.Status, &t.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		at := completedAt.Time.UTC()
		t.CompletedAt = &at
	}
	return &t, nil
}

func getTask(q querier, id string) (*model.Task, error) {
	row := q.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func listTasks(q querier) ([]model.Task, error) {
	rows, err := q.Query(`SELECT ` + taskCols + ` FROM tasks ORDER BY created_at ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// validateAssignee checks that the assignee exists and is a child.
func validateAssignee(q querier, memberID string) error {
	if memberID == "" {
		return fmt.Errorf("task assignee is required: %w", ledger.ErrValidation)
	}
	member, err := getMember(q, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return fmt.Errorf("assignee %s: %w", memberID, ledger.ErrNotFound)
	}
	if member.Role != model.RoleChild {
		return fmt.Errorf("tasks can only be assigned to a child: %w", ledger.ErrValidation)
	}
	return nil
}

type NewTask struct {
	Title       string
	Description string
	Reward      int64
	AssignedTo  string
}

// Create inserts a task in the pending state with a nil completion time.
func (s *TaskStore) Create(nt NewTask) (*model.Task, error) {
	nt.Title = strings.TrimSpace(nt.Title)
	if nt.Title == "" {
		return nil, fmt.Errorf("task title is required: %w", ledger.ErrValidation)
	}
	if nt.Reward < 1 {
		return nil, fmt.Errorf("task reward must be at least 1: %w", ledger.ErrValidation)
	}
	if err := validateAssignee(s.db, nt.AssignedTo); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, title, description, reward, assigned_to) VALUES (?, ?, ?, ?, ?)`,
		id, nt.Title, nt.Description, nt.Reward, nt.AssignedTo,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id string) (*model.Task, error) {
	return getTask(s.db, id)
}

func (s *TaskStore) List() ([]model.Task, error) {
	return listTasks(s.db)
}

func (s *TaskStore) ListByAssignee(memberID string) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE assigned_to = ? ORDER BY created_at ASC, title ASC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by assignee: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// TaskPatch is a partial update. Nil fields are left untouched. Status here
// covers only the non-approval transitions; the approval transaction is the
// sole writer of the completed status.
type TaskPatch struct {
	Title       *string
	Description *string
	Reward      *int64
	AssignedTo  *string
	Status      *model.TaskStatus
}

// UpdateFields applies a partial update. Callers are responsible for having
// validated any status change against the transition table; the store still
// refuses to write the completed status and refuses to touch a task that
// reached it, so a racing approval can never be clobbered.
func (s *TaskStore) UpdateFields(id string, patch TaskPatch) (*model.Task, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("task %s: %w", id, ledger.ErrNotFound)
	}

	var sets []string
	var args []any

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("task title cannot be empty: %w", ledger.ErrValidation)
		}
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Reward != nil {
		if *patch.Reward < 1 {
			return nil, fmt.Errorf("task reward must be at least 1: %w", ledger.ErrValidation)
		}
		sets = append(sets, "reward = ?")
		args = append(args, *patch.Reward)
	}
	if patch.AssignedTo != nil {
		if err := validateAssignee(s.db, *patch.AssignedTo); err != nil {
			return nil, err
		}
		sets = append(sets, "assigned_to = ?")
		args = append(args, *patch.AssignedTo)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", *patch.Status, ledger.ErrValidation)
		}
		if *patch.Status == model.TaskCompleted {
			return nil, fmt.Errorf("completed is only reachable through approval: %w", ledger.ErrValidation)
		}
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}

	if len(sets) == 0 {
		return existing, nil
	}

	where := `WHERE id = ?`
	args = append(args, id)
	if patch.Status != nil {
		// A racing approval must not be reverted by a stale status write.
		where += ` AND status <> ?`
		args = append(args, model.TaskCompleted)
	}

	res, err := s.db.Exec(`UPDATE tasks SET `+strings.Join(sets, ", ")+` `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 && patch.Status != nil {
		// Completed between our read and this write
		return nil, fmt.Errorf("task %s is completed: %w", id, ledger.ErrConflict)
	}
	return s.GetByID(id)
}

// Delete removes a task unconditionally. An un-approved task carries no
// balance liability, and a completed one keeps its credit.
func (s *TaskStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// nowUTC is the completion-time clock, truncated to the store's granularity.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
