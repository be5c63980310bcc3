package store

import (
	"errors"
	"testing"

	"github.com/gorber/veckopeng/internal/ledger"
	"github.com/gorber/veckopeng/internal/model"
)

func TestMemberCreate(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)

	m, err := ms.Create(NewMember{Name: "  Astrid  ", Role: model.RoleChild, PINHash: "hashed"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if m.ID == "" {
		t.Error("expected a generated id")
	}
	if m.Name != "Astrid" {
		t.Errorf("expected trimmed name Astrid, got %q", m.Name)
	}
	if m.Currency != "SEK" {
		t.Errorf("expected default currency SEK, got %q", m.Currency)
	}
	if m.Balance != 0 || m.TotalEarned != 0 {
		t.Errorf("expected zero ledger, got balance=%d total_earned=%d", m.Balance, m.TotalEarned)
	}
	if !m.HasPIN {
		t.Error("expected HasPIN to be true")
	}
	if m.WeeklyAllowance != nil {
		t.Error("expected no weekly allowance by default")
	}
}

func TestMemberCreateValidation(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)

	cases := []struct {
		name string
		nm   NewMember
	}{
		{"empty name", NewMember{Name: "   ", Role: model.RoleChild, PINHash: "h"}},
		{"bad role", NewMember{Name: "A", Role: "admin", PINHash: "h"}},
		{"missing pin", NewMember{Name: "A", Role: model.RoleChild}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ms.Create(tc.nm); !errors.Is(err, ledger.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestMemberUpdateFields(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	m := createChild(t, ms, "Nils")

	handle := "0701234567"
	method := model.PaymentSwish
	weekly := int64(5000)
	updated, err := ms.UpdateFields(m.ID, MemberPatch{
		PaymentHandle:   &handle,
		PaymentMethod:   &method,
		WeeklyAllowance: &weekly,
	})
	if err != nil {
		t.Fatalf("UpdateFields failed: %v", err)
	}
	if updated.PaymentHandle != handle || updated.PaymentMethod != method {
		t.Errorf("payment fields not applied: %+v", updated)
	}
	if updated.WeeklyAllowance == nil || *updated.WeeklyAllowance != weekly {
		t.Errorf("weekly allowance not applied: %+v", updated.WeeklyAllowance)
	}
	if updated.Name != "Nils" {
		t.Errorf("untouched field changed: %q", updated.Name)
	}
}

func TestMemberBalanceOverrideClampsAtZero(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	m := createChild(t, ms, "Nils")

	negative := int64(-500)
	updated, err := ms.UpdateFields(m.ID, MemberPatch{Balance: &negative})
	if err != nil {
		t.Fatalf("UpdateFields failed: %v", err)
	}
	if updated.Balance != 0 {
		t.Errorf("expected balance clamped to 0, got %d", updated.Balance)
	}
}

func TestMemberUpdateNotFound(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)

	name := "Ghost"
	if _, err := ms.UpdateFields("missing", MemberPatch{Name: &name}); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemberMarkPaid(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	m := createChild(t, ms, "Nils")

	balance := int64(2500)
	if _, err := ms.UpdateFields(m.ID, MemberPatch{Balance: &balance}); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	paid, err := ms.MarkPaid(m.ID)
	if err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if paid.Balance != 0 {
		t.Errorf("expected balance 0 after mark paid, got %d", paid.Balance)
	}
	if paid.TotalEarned != 0 {
		t.Errorf("total earned must survive mark paid, got %d", paid.TotalEarned)
	}
}

func TestMemberListOrdersParentsFirst(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	createChild(t, ms, "Astrid")
	createParent(t, ms, "Maria")

	members, err := ms.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].Role != model.RoleParent {
		t.Errorf("expected parent first, got %s", members[0].Role)
	}
}

func TestMemberPINRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	m := createChild(t, ms, "Nils")

	if err := ms.SetPIN(m.ID, "newhash"); err != nil {
		t.Fatalf("SetPIN failed: %v", err)
	}
	hash, err := ms.GetPINHash(m.ID)
	if err != nil {
		t.Fatalf("GetPINHash failed: %v", err)
	}
	if hash != "newhash" {
		t.Errorf("expected stored hash, got %q", hash)
	}

	if err := ms.SetPIN("missing", "h"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected not found for unknown member, got %v", err)
	}
}

func TestMemberDelete(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	m := createChild(t, ms, "Nils")

	if err := ms.Delete(m.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := ms.GetByID(m.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("member still present after delete: %+v", got)
	}

	if err := ms.Delete(m.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected not found deleting twice, got %v", err)
	}
}

func TestMemberGetByIDMissing(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)

	m, err := ms.GetByID("missing")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil for unknown id, got %+v", m)
	}
}
