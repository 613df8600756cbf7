package actor

import "sort"

// Memory holds short-lived facts keyed by name, each with an absolute
// expiry tick.
type Memory struct {
	entries map[string]uint64
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]uint64{}}
}

// Remember stores key until now+ttl. Re-remembering extends the deadline.
func (m *Memory) Remember(key string, now, ttl uint64) {
	if m.entries == nil {
		m.entries = map[string]uint64{}
	}
	m.entries[key] = now + ttl
}

// Recall reports whether key is still live at now.
func (m *Memory) Recall(key string, now uint64) bool {
	exp, ok := m.entries[key]
	return ok && exp > now
}

// Expire drops every entry whose deadline is not after now and returns how
// many were dropped.
func (m *Memory) Expire(now uint64) int {
	n := 0
	for k, exp := range m.entries {
		if exp <= now {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *Memory) Len() int { return len(m.entries) }

type MemoryEntry struct {
	Key    string `json:"key"`
	Expiry uint64 `json:"expiry"`
}

// Entries returns the live entries sorted by key.
func (m *Memory) Entries() []MemoryEntry {
	out := make([]MemoryEntry, 0, len(m.entries))
	for k, v := range m.entries {
		out = append(out, MemoryEntry{Key: k, Expiry: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
