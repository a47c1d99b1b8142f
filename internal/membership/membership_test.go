package membership

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "questnotify/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(dir, "quest.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seed(t *testing.T, st Store) {
	t.Helper()
	db := st.(*sqliteStore).db
	stmts := []string{
		`INSERT INTO schools(id, name) VALUES (1, 'EM Dom Pedro')`,
		`INSERT INTO users(id, name, role, school_id) VALUES
			(10, 'Ana', 'student', 1),
			(11, 'Bruno', 'student', 1),
			(12, 'Profa. Carla', 'teacher', 1)`,
		`INSERT INTO clans(id, name, school_id) VALUES (5, 'Dragões', 1)`,
		`INSERT INTO clan_members(clan_id, user_id) VALUES (5, 10), (5, 11)`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("seed %q: %v", q, err)
		}
	}
}

func TestSchoolMembersStudentsOnly(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	seed(t, st)

	ids, err := st.SchoolMembers(context.Background(), 1)
	if err != nil {
		t.Fatalf("SchoolMembers: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 students, got %v", ids)
	}
	for _, id := range ids {
		if id == 12 {
			t.Fatal("teacher account must not be part of a school fan-out")
		}
	}
}

func TestSchoolNotFound(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	seed(t, st)

	_, err := st.SchoolMembers(context.Background(), 999)
	if !errors.Is(err, ErrSchoolNotFound) {
		t.Fatalf("expected ErrSchoolNotFound, got %v", err)
	}
}

func TestClanMembers(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	seed(t, st)

	ids, err := st.ClanMembers(context.Background(), 5)
	if err != nil {
		t.Fatalf("ClanMembers: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 members, got %v", ids)
	}

	_, err = st.ClanMembers(context.Background(), 404)
	if !errors.Is(err, ErrClanNotFound) {
		t.Fatalf("expected ErrClanNotFound, got %v", err)
	}
}

func TestPowerupSweepOnce(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	seed(t, st)

	now := time.Now()
	db := st.(*sqliteStore).db
	if _, err := db.Exec(
		`INSERT INTO powerups(user_id, kind, expires_at, notified) VALUES
			(10, 'double_xp', ?, 0),
			(11, 'shield', ?, 0)`,
		now.Add(-time.Minute).UnixMilli(), now.Add(time.Hour).UnixMilli(),
	); err != nil {
		t.Fatalf("insert powerups: %v", err)
	}

	expired, err := st.ExpiredPowerups(context.Background(), now)
	if err != nil {
		t.Fatalf("ExpiredPowerups: %v", err)
	}
	if len(expired) != 1 || expired[0].UserID != 10 || expired[0].Kind != "double_xp" {
		t.Fatalf("unexpected expired set: %+v", expired)
	}

	if err := st.MarkPowerupNotified(context.Background(), expired[0].ID); err != nil {
		t.Fatalf("MarkPowerupNotified: %v", err)
	}
	expired, err = st.ExpiredPowerups(context.Background(), now)
	if err != nil {
		t.Fatalf("ExpiredPowerups (2nd): %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("sweep must not return notified rows, got %+v", expired)
	}
}

func TestMemoryStoreResolver(t *testing.T) {
	t.Parallel()
	m := NewMemoryStore()
	m.AddSchool(1, 10, 11)
	m.AddClan(5, 10)

	ids, err := m.SchoolMembers(context.Background(), 1)
	if err != nil || len(ids) != 2 {
		t.Fatalf("SchoolMembers = %v, %v", ids, err)
	}
	if _, err := m.ClanMembers(context.Background(), 99); !errors.Is(err, ErrClanNotFound) {
		t.Fatalf("expected ErrClanNotFound, got %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
