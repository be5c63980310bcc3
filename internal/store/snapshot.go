package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gorber/veckopeng/internal/ledger"
	"github.com/gorber/veckopeng/internal/model"
)

// Snapshot returns the full authoritative state. Clients replace their
// local copy with it.
func (s *LedgerStore) Snapshot() (*model.Snapshot, error) {
	members, err := listMembers(s.db)
	if err != nil {
		return nil, err
	}
	tasks, err := listTasks(s.db)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []model.Member{}
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return &model.Snapshot{Members: members, Tasks: tasks}, nil
}

// MergePartial merges a client-proposed patch onto the authoritative state,
// last-write-wins per top-level collection, inside one transaction, and
// returns the merged snapshot. Guardrails:
//
//   - a patched member keeps its authoritative balance and total_earned;
//     ledger fields never flow in from a client copy
//   - members cannot be created or deleted through a patch (creation needs
//     a PIN, which snapshots do not carry)
//   - the completed status is neither entered nor left through a patch, so
//     a stale task list cannot clobber or replay a concurrent approval
//   - a status change on an existing task goes through the same transition
//     table as the task endpoint, judged against the acting member
func (s *LedgerStore) MergePartial(patch model.SnapshotPatch, actor *model.Member) (*model.Snapshot, error) {
	err := s.runAtomic(func(tx *sql.Tx) error {
		if patch.Members != nil {
			if err := mergeMembers(tx, *patch.Members); err != nil {
				return err
			}
		}
		if patch.Tasks != nil {
			if err := mergeTasks(tx, *patch.Tasks, actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Snapshot()
}

func mergeMembers(tx *sql.Tx, members []model.Member) error {
	for _, m := range members {
		existing, err := getMember(tx, m.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("member %s not known; members cannot be created through a snapshot patch: %w", m.ID, ledger.ErrValidation)
		}

		name := strings.TrimSpace(m.Name)
		if name == "" {
			return fmt.Errorf("member name cannot be empty: %w", ledger.ErrValidation)
		}

		var weekly sql.NullInt64
		if m.WeeklyAllowance != nil {
			weekly = sql.NullInt64{Int64: *m.WeeklyAllowance, Valid: true}
		}

		// Role, pin, balance and total_earned deliberately untouched.
		_, err = tx.Exec(
			`UPDATE members SET name = ?, avatar = ?, payment_handle = ?, payment_method = ?, currency = ?, weekly_allowance = ?, updated_at = datetime('now') WHERE id = ?`,
			name, m.Avatar, m.PaymentHandle, m.PaymentMethod, m.Currency, weekly, m.ID,
		)
		if err != nil {
			return fmt.Errorf("merge member: %w", err)
		}
	}
	return nil
}

func mergeTasks(tx *sql.Tx, tasks []model.Task, actor *model.Member) error {
	current, err := listTasks(tx)
	if err != nil {
		return err
	}
	byID := make(map[string]model.Task, len(current))
	for _, t := range current {
		byID[t.ID] = t
	}

	patched := make(map[string]bool, len(tasks))
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.NewString()
		}
		if patched[tasks[i].ID] {
			return fmt.Errorf("task %s appears twice in the patch: %w", tasks[i].ID, ledger.ErrValidation)
		}
		patched[tasks[i].ID] = true
	}

	// The patch is the whole collection: rows it omits are deletions.
	for id := range byID {
		if !patched[id] {
			if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
				return fmt.Errorf("merge delete task: %w", err)
			}
		}
	}

	for _, t := range tasks {
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			return fmt.Errorf("task title is required: %w", ledger.ErrValidation)
		}
		if t.Reward < 1 {
			return fmt.Errorf("task reward must be at least 1: %w", ledger.ErrValidation)
		}
		if err := validateAssignee(tx, t.AssignedTo); err != nil {
			return err
		}

		cur, exists := byID[t.ID]
		if exists {
			status := t.Status
			if cur.Status == model.TaskCompleted || status == model.TaskCompleted {
				// Only the approval transaction moves tasks in or out of
				// completed; the authoritative status wins.
				status = cur.Status
			}
			if !status.Valid() {
				return fmt.Errorf("unknown status %q: %w", status, ledger.ErrValidation)
			}
			if status != cur.Status {
				if actor == nil {
					return fmt.Errorf("a status change needs an acting member: %w", ledger.ErrForbidden)
				}
				if _, err := ledger.Transition(cur, status, *actor); err != nil {
					return err
				}
			}
			_, err := tx.Exec(
				`UPDATE tasks SET title = ?, description = ?, reward = ?, assigned_to = ?, status = ? WHERE id = ?`,
				t.Title, t.Description, t.Reward, t.AssignedTo, status, t.ID,
			)
			if err != nil {
				return fmt.Errorf("merge update task: %w", err)
			}
			continue
		}

		status := t.Status
		if status == "" {
			status = model.TaskPending
		}
		if status == model.TaskCompleted {
			return fmt.Errorf("task %s: a task cannot enter completed through a snapshot patch: %w", t.ID, ledger.ErrValidation)
		}
		if !status.Valid() {
			return fmt.Errorf("unknown status %q: %w", status, ledger.ErrValidation)
		}
		_, err := tx.Exec(
			`INSERT INTO tasks (id, title, description, reward, assigned_to, status) VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, t.Title, t.Description, t.Reward, t.AssignedTo, status,
		)
		if err != nil {
			return fmt.Errorf("merge insert task: %w", err)
		}
	}
	return nil
}
