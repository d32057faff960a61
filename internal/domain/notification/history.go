package notification

import (
	"sort"
	"time"
)

// HistoryEntry is one message already delivered to the student for the
// registration being evaluated.
type HistoryEntry struct {
	Code     Code      `json:"code"`
	SentDate time.Time `json:"sent_date"`
	// Milestone is the milestone tag recorded with the message, if any.
	Milestone string `json:"milestone,omitempty"`
}

// HistoryIndex is an immutable, code-keyed view of the delivery log. It is
// built once per student and may be shared between goroutines.
type HistoryIndex struct {
	byCode     map[Code]time.Time
	milestones map[string]struct{}
	latest     *HistoryEntry
	size       int
}

// NewHistoryIndex indexes entries. When a code appears more than once the
// most recent send date is kept.
func NewHistoryIndex(entries []HistoryEntry) *HistoryIndex {
	h := &HistoryIndex{
		byCode:     make(map[Code]time.Time, len(entries)),
		milestones: make(map[string]struct{}),
		size:       len(entries),
	}
	for i := range entries {
		e := entries[i]
		if prev, ok := h.byCode[e.Code]; !ok || e.SentDate.After(prev) {
			h.byCode[e.Code] = e.SentDate
		}
		if e.Milestone != "" {
			h.milestones[e.Milestone] = struct{}{}
		}
		if h.latest == nil || e.SentDate.After(h.latest.SentDate) {
			h.latest = &e
		}
	}
	return h
}

// EmptyHistory is an index with no entries.
func EmptyHistory() *HistoryIndex {
	return NewHistoryIndex(nil)
}

// Len returns the number of entries indexed.
func (h *HistoryIndex) Len() int {
	if h == nil {
		return 0
	}
	return h.size
}

// Has reports whether the code was ever sent.
func (h *HistoryIndex) Has(c Code) bool {
	if h == nil {
		return false
	}
	_, ok := h.byCode[c]
	return ok
}

// SentOn returns the most recent send date of a code.
func (h *HistoryIndex) SentOn(c Code) (time.Time, bool) {
	if h == nil {
		return time.Time{}, false
	}
	d, ok := h.byCode[c]
	return d, ok
}

// HasAny reports whether at least one of the codes was sent.
func (h *HistoryIndex) HasAny(codes ...Code) bool {
	for _, c := range codes {
		if h.Has(c) {
			return true
		}
	}
	return false
}

// HasNone reports whether none of the codes was sent.
func (h *HistoryIndex) HasNone(codes ...Code) bool {
	return !h.HasAny(codes...)
}

// HasFamily reports whether any member of the family was sent.
func (h *HistoryIndex) HasFamily(f Family) bool {
	return h.HasAny(f.Codes...)
}

// HasMilestone reports whether any message was tagged with the milestone.
func (h *HistoryIndex) HasMilestone(tag string) bool {
	if h == nil {
		return false
	}
	_, ok := h.milestones[tag]
	return ok
}

// Latest returns the most recently sent entry.
func (h *HistoryIndex) Latest() (HistoryEntry, bool) {
	if h == nil || h.latest == nil {
		return HistoryEntry{}, false
	}
	return *h.latest, true
}

// Codes returns the distinct codes in the index, sorted.
func (h *HistoryIndex) Codes() []Code {
	if h == nil {
		return nil
	}
	out := make([]Code, 0, len(h.byCode))
	for c := range h.byCode {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
