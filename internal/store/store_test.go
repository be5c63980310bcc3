package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/gorber/veckopeng/internal/database"
	"github.com/gorber/veckopeng/internal/model"
)

// setupTestDB opens a file-backed database in a temp dir so concurrent
// transactions in tests behave like production, not like :memory: pools.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createParent(t *testing.T, ms *MemberStore, name string) *model.Member {
	t.Helper()
	m, err := ms.Create(NewMember{Name: name, Role: model.RoleParent, PINHash: "hashed"})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	return m
}

func createChild(t *testing.T, ms *MemberStore, name string) *model.Member {
	t.Helper()
	m, err := ms.Create(NewMember{Name: name, Role: model.RoleChild, PINHash: "hashed"})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return m
}

func createTask(t *testing.T, ts *TaskStore, title string, reward int64, assignee string) *model.Task {
	t.Helper()
	task, err := ts.Create(NewTask{Title: title, Reward: reward, AssignedTo: assignee})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

// submitForApproval moves a pending task to waiting_for_approval directly,
// standing in for the child's request.
func submitForApproval(t *testing.T, ts *TaskStore, id string) {
	t.Helper()
	waiting := model.TaskWaitingApproval
	if _, err := ts.UpdateFields(id, TaskPatch{Status: &waiting}); err != nil {
		t.Fatalf("submit for approval: %v", err)
	}
}
