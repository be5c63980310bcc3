package ledger

import (
	"fmt"

	"github.com/gorber/veckopeng/internal/model"
)

// Effect is the ledger side effect a legal transition implies.
type Effect int

const (
	// EffectNone leaves balances untouched.
	EffectNone Effect = iota
	// EffectCredit credits the task's reward to the assignee's balance and
	// lifetime earnings at commit time.
	EffectCredit
)

// Transition decides whether actor may move task to the requested status,
// and what side effect the move carries. It is pure: it reads nothing and
// writes nothing, so callers re-run it inside a transaction against the
// freshly-read row.
//
// The table:
//
//	pending              -> waiting_for_approval   the assigned child
//	waiting_for_approval -> completed              any parent (credits reward)
//	waiting_for_approval -> pending                any parent (rejection)
//	completed            -> (terminal)
func Transition(task model.Task, to model.TaskStatus, actor model.Member) (Effect, error) {
	if !to.Valid() {
		return EffectNone, fmt.Errorf("unknown status %q: %w", to, ErrValidation)
	}

	switch {
	case task.Status == model.TaskPending && to == model.TaskWaitingApproval:
		if actor.Role != model.RoleChild || actor.ID != task.AssignedTo {
			return EffectNone, fmt.Errorf("only the assigned child may submit a task for approval: %w", ErrForbidden)
		}
		return EffectNone, nil

	case task.Status == model.TaskWaitingApproval && to == model.TaskCompleted:
		if actor.Role != model.RoleParent {
			return EffectNone, fmt.Errorf("only a parent may approve a task: %w", ErrForbidden)
		}
		return EffectCredit, nil

	case task.Status == model.TaskWaitingApproval && to == model.TaskPending:
		if actor.Role != model.RoleParent {
			return EffectNone, fmt.Errorf("only a parent may reject a task: %w", ErrForbidden)
		}
		return EffectNone, nil
	}

	return EffectNone, fmt.Errorf("cannot move task from %q to %q: %w", task.Status, to, ErrInvalidTransition)
}
