package store

import (
	"errors"
	"testing"

	"github.com/gorber/veckopeng/internal/ledger"
	"github.com/gorber/veckopeng/internal/model"
)

func TestSnapshotEmptyCollections(t *testing.T) {
	db := setupTestDB(t)
	ls := NewLedgerStore(db)

	snap, err := ls.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Members == nil || snap.Tasks == nil {
		t.Error("expected non-nil empty collections")
	}
	if len(snap.Members) != 0 || len(snap.Tasks) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}

func TestMergeNilCollectionsUntouched(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ts := NewTaskStore(db)
	ls := NewLedgerStore(db)
	child := createChild(t, ms, "Astrid")
	createTask(t, ts, "Dishes", 500, child.ID)

	// A patch with no tasks key must not delete the task collection.
	snap, err := ls.MergePartial(model.SnapshotPatch{Members: &[]model.Member{*child}}, nil)
	if err != nil {
		t.Fatalf("MergePartial failed: %v", err)
	}
	if len(snap.Tasks) != 1 {
		t.Errorf("absent collection was touched: %+v", snap.Tasks)
	}
}

func TestMergeMemberKeepsLedgerFields(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ls := NewLedgerStore(db)
	child := createChild(t, ms, "Astrid")

	balance := int64(2000)
	if _, err := ms.UpdateFields(child.ID, MemberPatch{Balance: &balance}); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	// Stale client copy claims a different balance and a new avatar.
	patched := *child
	patched.Avatar = "🦊"
	patched.Balance = 999999
	patched.TotalEarned = 999999

	snap, err := ls.MergePartial(model.SnapshotPatch{Members: &[]model.Member{patched}}, nil)
	if err != nil {
		t.Fatalf("MergePartial failed: %v", err)
	}
	got := snap.Members[0]
	if got.Avatar != "🦊" {
		t.Errorf("non-ledger field not merged: %q", got.Avatar)
	}
	if got.Balance != 2000 || got.TotalEarned != 0 {
		t.Errorf("ledger fields leaked in from the patch: balance=%d total_earned=%d", got.Balance, got.TotalEarned)
	}
}

func TestMergeRejectsUnknownMember(t *testing.T) {
	db := setupTestDB(t)
	ls := NewLedgerStore(db)

	patch := model.SnapshotPatch{Members: &[]model.Member{{ID: "new", Name: "Intruder", Role: model.RoleChild}}}
	if _, err := ls.MergePartial(patch, nil); !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("expected validation error creating a member via patch, got %v", err)
	}
}

func TestMergeTasksReplacesCollection(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ts := NewTaskStore(db)
	ls := NewLedgerStore(db)
	child := createChild(t, ms, "Astrid")
	old := createTask(t, ts, "Dishes", 500, child.ID)

	patch := model.SnapshotPatch{Tasks: &[]model.Task{
		{Title: "Vacuum", Reward: 700, AssignedTo: child.ID},
	}}
	snap, err := ls.MergePartial(patch, nil)
	if err != nil {
		t.Fatalf("MergePartial failed: %v", err)
	}
	if len(snap.Tasks) != 1 {
		t.Fatalf("expected 1 task after merge, got %d", len(snap.Tasks))
	}
	got := snap.Tasks[0]
	if got.Title != "Vacuum" || got.ID == old.ID {
		t.Errorf("unexpected merged task: %+v", got)
	}
	if got.ID == "" {
		t.Error("expected a generated id for the new task")
	}
	if got.Status != model.TaskPending {
		t.Errorf("new task should default to pending, got %s", got.Status)
	}
}

func TestMergeCannotEnterCompleted(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ls := NewLedgerStore(db)
	child := createChild(t, ms, "Astrid")

	patch := model.SnapshotPatch{Tasks: &[]model.Task{
		{Title: "Free money", Reward: 100000, AssignedTo: child.ID, Status: model.TaskCompleted},
	}}
	if _, err := ls.MergePartial(patch, nil); !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("expected validation error for completed task in patch, got %v", err)
	}
}

func TestMergeCannotLeaveCompleted(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ts := NewTaskStore(db)
	ls := NewLedgerStore(db)
	parent := createParent(t, ms, "Maria")
	child := createChild(t, ms, "Astrid")
	task := createTask(t, ts, "Dishes", 1500, child.ID)
	submitForApproval(t, ts, task.ID)
	if _, _, err := ls.Approve(task.ID, parent.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	// Stale client copy still has the task pending; the completion must win.
	stale := *task
	stale.Status = model.TaskPending
	snap, err := ls.MergePartial(model.SnapshotPatch{Tasks: &[]model.Task{stale}}, nil)
	if err != nil {
		t.Fatalf("MergePartial failed: %v", err)
	}
	if snap.Tasks[0].Status != model.TaskCompleted {
		t.Errorf("completed status clobbered by stale patch: %s", snap.Tasks[0].Status)
	}

	got, err := ms.GetByID(child.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Balance != 1500 {
		t.Errorf("merge changed the ledger: balance=%d", got.Balance)
	}
}

func TestMergeValidatesTasks(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ls := NewLedgerStore(db)
	child := createChild(t, ms, "Astrid")

	cases := []struct {
		name string
		task model.Task
		want error
	}{
		{"empty title", model.Task{Title: " ", Reward: 100, AssignedTo: child.ID}, ledger.ErrValidation},
		{"zero reward", model.Task{Title: "Dishes", Reward: 0, AssignedTo: child.ID}, ledger.ErrValidation},
		{"unknown assignee", model.Task{Title: "Dishes", Reward: 100, AssignedTo: "missing"}, ledger.ErrNotFound},
		{"bad status", model.Task{Title: "Dishes", Reward: 100, AssignedTo: child.ID, Status: "done"}, ledger.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			patch := model.SnapshotPatch{Tasks: &[]model.Task{tc.task}}
			if _, err := ls.MergePartial(patch, nil); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMergeRejectsDuplicateTaskIDs(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ts := NewTaskStore(db)
	ls := NewLedgerStore(db)
	child := createChild(t, ms, "Astrid")
	task := createTask(t, ts, "Dishes", 500, child.ID)

	patch := model.SnapshotPatch{Tasks: &[]model.Task{
		{ID: task.ID, Title: "Dishes", Reward: 500, AssignedTo: child.ID, Status: model.TaskPending},
		{ID: task.ID, Title: "Dishes again", Reward: 900, AssignedTo: child.ID, Status: model.TaskPending},
	}}
	if _, err := ls.MergePartial(patch, nil); !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("expected validation error for duplicate ids, got %v", err)
	}
}

func TestMergeStatusChangeNeedsLegalActor(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ts := NewTaskStore(db)
	ls := NewLedgerStore(db)
	parent := createParent(t, ms, "Maria")
	astrid := createChild(t, ms, "Astrid")
	nils := createChild(t, ms, "Nils")
	task := createTask(t, ts, "Dishes", 500, astrid.ID)
	submitForApproval(t, ts, task.ID)

	rejected := *task
	rejected.Status = model.TaskPending

	patchWith := func(t model.Task) model.SnapshotPatch {
		return model.SnapshotPatch{Tasks: &[]model.Task{t}}
	}

	// No acting member on the request: status changes are off the table.
	if _, err := ls.MergePartial(patchWith(rejected), nil); !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("expected forbidden without an actor, got %v", err)
	}

	// A child device cannot reject through a patch either.
	if _, err := ls.MergePartial(patchWith(rejected), nils); !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("expected forbidden for child rejecting, got %v", err)
	}

	// A parent can; the transition is the same one the task endpoint runs.
	snap, err := ls.MergePartial(patchWith(rejected), parent)
	if err != nil {
		t.Fatalf("MergePartial failed: %v", err)
	}
	if snap.Tasks[0].Status != model.TaskPending {
		t.Errorf("rejection not applied: %s", snap.Tasks[0].Status)
	}

	// And the assigned child can submit their own task.
	resubmitted := rejected
	resubmitted.Status = model.TaskWaitingApproval
	snap, err = ls.MergePartial(patchWith(resubmitted), astrid)
	if err != nil {
		t.Fatalf("MergePartial failed: %v", err)
	}
	if snap.Tasks[0].Status != model.TaskWaitingApproval {
		t.Errorf("submission not applied: %s", snap.Tasks[0].Status)
	}
}

func TestMergeUnchangedStatusNeedsNoActor(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ts := NewTaskStore(db)
	ls := NewLedgerStore(db)
	child := createChild(t, ms, "Astrid")
	task := createTask(t, ts, "Dishes", 500, child.ID)

	edited := *task
	edited.Title = "Dinner dishes"
	snap, err := ls.MergePartial(model.SnapshotPatch{Tasks: &[]model.Task{edited}}, nil)
	if err != nil {
		t.Fatalf("MergePartial failed: %v", err)
	}
	if snap.Tasks[0].Title != "Dinner dishes" {
		t.Errorf("field edit not applied: %q", snap.Tasks[0].Title)
	}
}

func TestMergeFailureRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ts := NewTaskStore(db)
	ls := NewLedgerStore(db)
	child := createChild(t, ms, "Astrid")
	createTask(t, ts, "Dishes", 500, child.ID)

	// Second task in the patch is invalid; the whole merge, including the
	// implied deletion of the existing task, must roll back.
	patch := model.SnapshotPatch{Tasks: &[]model.Task{
		{Title: "Vacuum", Reward: 700, AssignedTo: child.ID},
		{Title: "", Reward: 700, AssignedTo: child.ID},
	}}
	if _, err := ls.MergePartial(patch, nil); !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	tasks, err := ts.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Dishes" {
		t.Errorf("merge was not rolled back: %+v", tasks)
	}
}
