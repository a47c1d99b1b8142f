package membership

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a fixture-backed Store for tests and the "memory" driver.
// Zero value is not usable; construct with NewMemoryStore.
type MemoryStore struct {
	mu       sync.RWMutex
	schools  map[int64][]int64 // school -> student user ids
	clans    map[int64][]int64 // clan -> member user ids
	powerups []Powerup
	notified map[int64]bool
	seq      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schools:  map[int64][]int64{},
		clans:    map[int64][]int64{},
		notified: map[int64]bool{},
	}
}

// AddSchool registers a school with the given student user IDs.
func (m *MemoryStore) AddSchool(schoolID int64, studentIDs ...int64) {
	m.mu.Lock()
	m.schools[schoolID] = append([]int64(nil), studentIDs...)
	m.mu.Unlock()
}

// AddClan registers a clan with the given member user IDs.
func (m *MemoryStore) AddClan(clanID int64, memberIDs ...int64) {
	m.mu.Lock()
	m.clans[clanID] = append([]int64(nil), memberIDs...)
	m.mu.Unlock()
}

// AddPowerup records a powerup and returns its ID.
func (m *MemoryStore) AddPowerup(userID int64, kind string, expiresAt time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.powerups = append(m.powerups, Powerup{ID: m.seq, UserID: userID, Kind: kind, ExpiresAt: expiresAt})
	return m.seq
}

func (m *MemoryStore) SchoolMembers(_ context.Context, schoolID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids, ok := m.schools[schoolID]
	if !ok {
		return nil, fmt.Errorf("school %d: %w", schoolID, ErrSchoolNotFound)
	}
	return append([]int64(nil), ids...), nil
}

func (m *MemoryStore) ClanMembers(_ context.Context, clanID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids, ok := m.clans[clanID]
	if !ok {
		return nil, fmt.Errorf("clan %d: %w", clanID, ErrClanNotFound)
	}
	return append([]int64(nil), ids...), nil
}

func (m *MemoryStore) ExpiredPowerups(_ context.Context, now time.Time) ([]Powerup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Powerup
	for _, p := range m.powerups {
		if !m.notified[p.ID] && !p.ExpiresAt.After(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) MarkPowerupNotified(_ context.Context, id int64) error {
	m.mu.Lock()
	m.notified[id] = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
