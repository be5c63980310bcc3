package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorber/veckopeng/internal/auth"
	"github.com/gorber/veckopeng/internal/database"
	"github.com/gorber/veckopeng/internal/logging"
	"github.com/gorber/veckopeng/internal/model"
	"github.com/gorber/veckopeng/internal/store"
)

type testEnv struct {
	db       *sql.DB
	members  *store.MemberStore
	tasks    *store.TaskStore
	ledger   *store.LedgerStore
	member   *MemberHandler
	task     *TaskHandler
	snapshot *SnapshotHandler
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logging.Setup("error")
	ms := store.NewMemberStore(db)
	ts := store.NewTaskStore(db)
	ls := store.NewLedgerStore(db)
	return &testEnv{
		db:       db,
		members:  ms,
		tasks:    ts,
		ledger:   ls,
		member:   NewMemberHandler(ms, nil, logger),
		task:     NewTaskHandler(ts, ls, nil, logger),
		snapshot: NewSnapshotHandler(ls, nil, logger),
	}
}

func (e *testEnv) parent(t *testing.T, name string) *model.Member {
	t.Helper()
	m, err := e.members.Create(store.NewMember{Name: name, Role: model.RoleParent, PINHash: "hashed"})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	return m
}

func (e *testEnv) child(t *testing.T, name string) *model.Member {
	t.Helper()
	m, err := e.members.Create(store.NewMember{Name: name, Role: model.RoleChild, PINHash: "hashed"})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return m
}

// request builds a test request with an optional acting member and an
// optional id path value, mirroring what the router and auth middleware
// provide in production.
func request(method, target string, body any, actor *model.Member, id string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if actor != nil {
		ctx := auth.WithActor(req.Context(), auth.Actor{MemberID: actor.ID, Role: actor.Role})
		req = req.WithContext(ctx)
	}
	if id != "" {
		req.SetPathValue("id", id)
	}
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return v
}
