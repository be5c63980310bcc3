package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gorber/veckopeng/internal/ledger"
	"github.com/gorber/veckopeng/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the scan helpers can
// serve plain reads and transactional re-reads alike.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, name, role, avatar, pin <> '', payment_handle, payment_method, currency, balance, total_earned, weekly_allowance, created_at, updated_at`

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	var weekly sql.NullInt64

	err := scanner.Scan(
		&m.ID, &m.Name, &m.Role, &m.Avatar, &m.HasPIN,
		&m.PaymentHandle, &m.PaymentMethod, &m.Currency,
		&m.Balance, &m.TotalEarned, &weekly,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if weekly.Valid {
		m.WeeklyAllowance = &weekly.Int64
	}
	return &m, nil
}

func getMember(q querier, id string) (*model.Member, error) {
	row := q.QueryRow(`SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func listMembers(q querier) ([]model.Member, error) {
	rows, err := q.Query(`SELECT ` + memberCols + ` FROM members ORDER BY role ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// NewMember carries the fields for member creation. PINHash is the bcrypt
// hash of the 4-digit PIN; the store never sees the plaintext.
type NewMember struct {
	Name            string
	Role            model.Role
	PINHash         string
	Avatar          string
	PaymentHandle   string
	PaymentMethod   model.PaymentMethod
	Currency        string
	WeeklyAllowance *int64
}

// Create inserts a member with a zero ledger (balance=0, total_earned=0).
func (s *MemberStore) Create(nm NewMember) (*model.Member, error) {
	nm.Name = strings.TrimSpace(nm.Name)
	if nm.Name == "" {
		return nil, fmt.Errorf("member name is required: %w", ledger.ErrValidation)
	}
	if !nm.Role.Valid() {
		return nil, fmt.Errorf("member role must be parent or child: %w", ledger.ErrValidation)
	}
	if nm.PINHash == "" {
		return nil, fmt.Errorf("member pin is required: %w", ledger.ErrValidation)
	}
	if nm.Currency == "" {
		nm.Currency = "SEK"
	}

	var weekly sql.NullInt64
	if nm.WeeklyAllowance != nil {
		weekly = sql.NullInt64{Int64: *nm.WeeklyAllowance, Valid: true}
	}

	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO members (id, name, role, pin, avatar, payment_handle, payment_method, currency, weekly_allowance) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nm.Name, nm.Role, nm.PINHash, nm.Avatar, nm.PaymentHandle, nm.PaymentMethod, nm.Currency, weekly,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	return s.GetByID(id)
}

func (s *MemberStore) GetByID(id string) (*model.Member, error) {
	return getMember(s.db, id)
}

func (s *MemberStore) List() ([]model.Member, error) {
	return listMembers(s.db)
}

// Count returns the number of members. Used to detect first-run setup.
func (s *MemberStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM members`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

// MemberPatch is a partial update. Nil fields are left untouched. Balance is
// the administrative override path only; the approval transaction is the
// only place reward money enters a balance.
type MemberPatch struct {
	Name            *string
	Avatar          *string
	PaymentHandle   *string
	PaymentMethod   *model.PaymentMethod
	Currency        *string
	WeeklyAllowance *int64
	Balance         *int64
}

// UpdateFields applies a partial update of non-ledger fields, plus the
// optional balance override (clamped at zero). TotalEarned is never
// writable here.
func (s *MemberStore) UpdateFields(id string, patch MemberPatch) (*model.Member, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("member %s: %w", id, ledger.ErrNotFound)
	}

	var sets []string
	var args []any

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("member name cannot be empty: %w", ledger.ErrValidation)
		}
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if patch.Avatar != nil {
		sets = append(sets, "avatar = ?")
		args = append(args, *patch.Avatar)
	}
	if patch.PaymentHandle != nil {
		sets = append(sets, "payment_handle = ?")
		args = append(args, *patch.PaymentHandle)
	}
	if patch.PaymentMethod != nil {
		sets = append(sets, "payment_method = ?")
		args = append(args, *patch.PaymentMethod)
	}
	if patch.Currency != nil {
		sets = append(sets, "currency = ?")
		args = append(args, *patch.Currency)
	}
	if patch.WeeklyAllowance != nil {
		sets = append(sets, "weekly_allowance = ?")
		args = append(args, *patch.WeeklyAllowance)
	}
	if patch.Balance != nil {
		balance := *patch.Balance
		if balance < 0 {
			balance = 0
		}
		sets = append(sets, "balance = ?")
		args = append(args, balance)
	}

	if len(sets) == 0 {
		return existing, nil
	}

	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, id)
	_, err = s.db.Exec(`UPDATE members SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a member and, through the schema's cascade, every task
// assigned to them. Any unpaid balance is forfeited with the row.
func (s *MemberStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// MarkPaid zeroes the member's balance after an out-of-band payment.
func (s *MemberStore) MarkPaid(id string) (*model.Member, error) {
	zero := int64(0)
	return s.UpdateFields(id, MemberPatch{Balance: &zero})
}

func (s *MemberStore) SetPIN(id, pinHash string) error {
	res, err := s.db.Exec(`UPDATE members SET pin = ?, updated_at = datetime('now') WHERE id = ?`, pinHash, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

func (s *MemberStore) GetPINHash(id string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT pin FROM members WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("member %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get pin: %w", err)
	}
	return hash, nil
}
