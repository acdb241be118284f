package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"entrypay/entity"
)

// Memory is an in-process store. A single mutex makes every operation atomic,
// which gives the same insert-or-fail and compare-and-swap guarantees the
// database backends get from unique indexes and conditional writes.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]*entity.Entry
	owners      map[string]string // category/creator -> entry id
	members     map[string][]*entity.Member
	categories  map[string]*entity.Category
	tournaments map[string]*entity.Tournament
	users       map[string]*entity.User // token -> user
	events      map[string]*entity.WebhookEvent
	writes      int
	failure     error
}

func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[string]*entity.Entry),
		owners:      make(map[string]string),
		members:     make(map[string][]*entity.Member),
		categories:  make(map[string]*entity.Category),
		tournaments: make(map[string]*entity.Tournament),
		users:       make(map[string]*entity.User),
		events:      make(map[string]*entity.WebhookEvent),
	}
}

func ownerKey(categoryId, createdBy string) string {
	return categoryId + "/" + createdBy
}

// Fail makes every following call return err; nil restores normal operation.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Writes is the number of entry mutations applied so far.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) PutCategory(category *entity.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *category
	m.categories[c.Id] = &c
}

func (m *Memory) PutTournament(tournament *entity.Tournament) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := *tournament
	m.tournaments[t.Id] = &t
}

func (m *Memory) PutUser(user *entity.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	m.users[u.Token] = &u
}

// PutEntry stores an entry as is, bypassing admission; used to seed fixtures.
func (m *Memory) PutEntry(entry *entity.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := *entry
	m.entries[e.Id] = &e
	m.owners[ownerKey(e.CategoryId, e.CreatedBy)] = e.Id
}

func (m *Memory) Members(entryId string) []*entity.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.Member(nil), m.members[entryId]...)
}

func (m *Memory) EntryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) WebhookEvent(eventId string) *entity.WebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	evt, ok := m.events[eventId]
	if !ok {
		return nil
	}
	e := *evt
	return &e
}

func (m *Memory) EntryByID(_ context.Context, id string) (*entity.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	entry, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	e := *entry
	return &e, nil
}

func (m *Memory) EntryByOwner(_ context.Context, categoryId, createdBy string) (*entity.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	id, ok := m.owners[ownerKey(categoryId, createdBy)]
	if !ok {
		return nil, nil
	}
	e := *m.entries[id]
	return &e, nil
}

func (m *Memory) CreateEntry(_ context.Context, entry *entity.Entry, member *entity.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	if _, ok := m.categories[entry.CategoryId]; !ok {
		return fmt.Errorf("category %s: %w", entry.CategoryId, entity.ErrInvalidReference)
	}
	key := ownerKey(entry.CategoryId, entry.CreatedBy)
	if _, ok := m.owners[key]; ok {
		return entity.ErrDuplicateEntry
	}
	e := *entry
	m.entries[e.Id] = &e
	m.owners[key] = e.Id
	if member != nil {
		mb := *member
		m.members[e.Id] = append(m.members[e.Id], &mb)
	}
	m.writes++
	return nil
}

func (m *Memory) UpdateEntry(_ context.Context, id string, cond entity.EntryCondition, upd entity.EntryUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return false, m.failure
	}
	entry, ok := m.entries[id]
	if !ok || !cond.Match(entry) {
		return false, nil
	}
	upd.Apply(entry)
	m.writes++
	return true, nil
}

func (m *Memory) EntriesAwaitingPayment(_ context.Context, before time.Time, limit int) ([]*entity.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	var list []*entity.Entry
	for _, entry := range m.entries {
		if entry.PaymentStatus != entity.PaymentUnpaid || entry.PaymentReference == "" {
			continue
		}
		if entry.CheckoutAt == nil || !entry.CheckoutAt.Before(before) {
			continue
		}
		e := *entry
		list = append(list, &e)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CheckoutAt.Before(*list[j].CheckoutAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *Memory) Category(_ context.Context, id string) (*entity.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	c, ok := m.categories[id]
	if !ok {
		return nil, nil
	}
	category := *c
	return &category, nil
}

func (m *Memory) Tournament(_ context.Context, id string) (*entity.Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	t, ok := m.tournaments[id]
	if !ok {
		return nil, nil
	}
	tournament := *t
	return &tournament, nil
}

func (m *Memory) SaveWebhookEvent(_ context.Context, event *entity.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	deliveries := 0
	if prev, ok := m.events[event.EventId]; ok {
		deliveries = prev.Deliveries
	}
	e := *event
	e.Deliveries = deliveries + 1
	m.events[e.EventId] = &e
	return nil
}

func (m *Memory) GetUser(token string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	u, ok := m.users[token]
	if !ok {
		return nil, entity.ErrUnauthorized
	}
	user := *u
	return &user, nil
}
