// Package ranking keeps the swipe feed order stable while scores arrive late.
package ranking

import (
	"crypto/sha256"
	"encoding/hex"
	"github.com/bwmarrin/snowflake"
	"sort"
	"strings"
	"sync"
)

type Score struct {
	ID      snowflake.ID
	Value   float64
	Reasons []string
}

type Item struct {
	ID      snowflake.ID
	Score   *float64
	Reasons []string
}

// ContextKey hashes the browsing mode and active filters. Filter order does not matter.
func ContextKey(mode string, filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(mode)
	for _, k := range keys {
		b.WriteString("\x00")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(filters[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Stack is the ordered feed for one context key. Before the first removal, arriving scores may reorder it;
// afterwards it only shrinks from the front.
type Stack struct {
	mu      sync.Mutex
	key     string
	built   bool
	locked  bool
	order   []snowflake.ID
	scores  map[snowflake.ID]Score
	removed map[snowflake.ID]struct{}
}

func NewStack() *Stack {
	return &Stack{}
}

// Current reports whether the stack holds a live ordering for key.
func (s *Stack) Current(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.built && s.key == key
}

// Build starts a fresh stack from ids in the given order unless it is already built for key.
// It returns true when it rebuilt.
func (s *Stack) Build(key string, ids []snowflake.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.built && s.key == key {
		return false
	}

	s.key = key
	s.built = true
	s.locked = false
	s.scores = map[snowflake.ID]Score{}
	s.removed = map[snowflake.ID]struct{}{}
	s.order = make([]snowflake.ID, 0, len(ids))

	seen := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s.order = append(s.order, id)
	}
	return true
}

// ApplyScores overlays scores onto items still in the stack. While unlocked the stack is stably
// re-sorted by score, unscored items after scored ones in their current relative order.
func (s *Stack) ApplyScores(scores []Score) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.built {
		return
	}

	present := make(map[snowflake.ID]struct{}, len(s.order))
	for _, id := range s.order {
		present[id] = struct{}{}
	}
	for _, score := range scores {
		if _, ok := present[score.ID]; ok {
			s.scores[score.ID] = score
		}
	}

	if s.locked {
		return
	}

	sort.SliceStable(s.order, func(i, j int) bool {
		left, leftScored := s.scores[s.order[i]]
		right, rightScored := s.scores[s.order[j]]
		switch {
		case leftScored && rightScored:
			return left.Value > right.Value
		default:
			return leftScored && !rightScored
		}
	})
}

// RemoveTop pops the front item and locks the order.
func (s *Stack) RemoveTop() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.built || len(s.order) == 0 {
		return Item{}, false
	}

	id := s.order[0]
	s.order = s.order[1:]
	s.removed[id] = struct{}{}
	s.locked = true
	return s.item(id), true
}

// Top returns the front item without removing it.
func (s *Stack) Top() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.built || len(s.order) == 0 {
		return Item{}, false
	}
	return s.item(s.order[0]), true
}

// Invalidate discards the stack; the next Build starts over whatever its key.
func (s *Stack) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.built = false
	s.locked = false
	s.order = nil
	s.scores = nil
	s.removed = nil
}

func (s *Stack) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.item(id))
	}
	return items
}

// Unscored lists ids still in the stack that have no score yet.
func (s *Stack) Unscored() []snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []snowflake.ID
	for _, id := range s.order {
		if _, ok := s.scores[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Removed reports whether id was popped under the current key.
func (s *Stack) Removed(id snowflake.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.removed[id]
	return ok
}

func (s *Stack) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

func (s *Stack) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

func (s *Stack) item(id snowflake.ID) Item {
	item := Item{ID: id}
	if score, ok := s.scores[id]; ok {
		value := score.Value
		item.Score = &value
		item.Reasons = score.Reasons
	}
	return item
}
