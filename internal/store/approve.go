package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gorber/veckopeng/internal/ledger"
	"github.com/gorber/veckopeng/internal/model"
)

// LedgerStore owns the two operations that touch members and tasks
// together: the approval transaction and the snapshot merge. Both run under
// runAtomic so their reads and writes commit as one unit or not at all.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// runAtomic executes fn inside a transaction. fn's reads see a consistent
// snapshot; on error nothing is committed.
func (s *LedgerStore) runAtomic(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Approve applies waiting_for_approval -> completed and credits the reward
// to the assignee, atomically. The task and actor are re-read inside the
// transaction, never taken from a client copy, and the status write is
// guarded on the current status: of two simultaneous approvals exactly one
// commits and the other gets ErrConflict.
func (s *LedgerStore) Approve(taskID, actorID string) (*model.Task, *model.Member, error) {
	var task *model.Task
	var assignee *model.Member

	err := s.runAtomic(func(tx *sql.Tx) error {
		actor, err := getMember(tx, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return fmt.Errorf("actor %s: %w", actorID, ledger.ErrNotFound)
		}

		fresh, err := getTask(tx, taskID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return fmt.Errorf("task %s: %w", taskID, ledger.ErrNotFound)
		}

		if _, err := ledger.Transition(*fresh, model.TaskCompleted, *actor); err != nil {
			if errors.Is(err, ledger.ErrInvalidTransition) {
				// Not waiting for approval anymore (or never was): a
				// concurrent approval or rejection got there first.
				return fmt.Errorf("task %s is %s: %w", fresh.ID, fresh.Status, ledger.ErrConflict)
			}
			return err
		}

		res, err := tx.Exec(
			`UPDATE tasks SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
			model.TaskCompleted, nowUTC(), fresh.ID, model.TaskWaitingApproval,
		)
		if err != nil {
			return fmt.Errorf("complete task: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("task %s: %w", fresh.ID, ledger.ErrConflict)
		}

		res, err = tx.Exec(
			`UPDATE members SET balance = balance + ?, total_earned = total_earned + ?, updated_at = datetime('now') WHERE id = ?`,
			fresh.Reward, fresh.Reward, fresh.AssignedTo,
		)
		if err != nil {
			return fmt.Errorf("credit assignee: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("assignee %s: %w", fresh.AssignedTo, ledger.ErrNotFound)
		}

		if task, err = getTask(tx, fresh.ID); err != nil {
			return err
		}
		if assignee, err = getMember(tx, fresh.AssignedTo); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return task, assignee, nil
}
