package hub

import (
	"strings"
	"sync"
)

// GenderAny disables gender filtering in a match request.
const GenderAny = "any"

// MatchRequest carries the preferences supplied with a find_match or skip
// event.
type MatchRequest struct {
	Interests []string
	// PreferredGender filters candidates by their own gender; GenderAny (or
	// empty) accepts everyone.
	PreferredGender string
	// Gender is the requester's own gender; empty means undisclosed, which
	// passes every candidate's filter.
	Gender string
}

type waitingEntry struct {
	userID    string
	interests map[string]struct{}
	pref      string
	gender    string
}

// Matchmaker owns the waiting pool and the match table. The waiting pool
// preserves insertion order; the match table is symmetric at every point a
// caller can observe (a user id appears as a key iff its partner does). A user
// is never simultaneously waiting and matched.
type Matchmaker struct {
	mu      sync.Mutex
	waiting []waitingEntry
	matches map[string]string
}

func NewMatchmaker() *Matchmaker {
	return &Matchmaker{matches: make(map[string]string)}
}

// FindMatch pairs id with the best waiting candidate, or enqueues id when no
// candidate is compatible. Returns the partner id and whether a match was
// made. Re-requesting while already waiting replaces the prior entry and its
// preferences.
func (m *Matchmaker) FindMatch(id string, req MatchRequest) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findMatchLocked(id, req)
}

func (m *Matchmaker) findMatchLocked(id string, req MatchRequest) (string, bool) {
	m.removeWaitingLocked(id)

	interests := interestSet(req.Interests)
	pref := normalizeGender(req.PreferredGender)

	best := -1
	bestScore := 0
	for i, c := range m.waiting {
		if c.userID == id {
			continue
		}
		// A waiting entry for an already-matched user is stale; skip it.
		if _, matched := m.matches[c.userID]; matched {
			continue
		}
		if !genderCompatible(pref, req.Gender, c.pref, c.gender) {
			continue
		}

		score := 0
		for tag := range interests {
			if _, ok := c.interests[tag]; ok {
				score++
			}
		}

		// First candidate at the maximum score wins; the first compatible
		// candidate stands in until something scores strictly higher. Equal
		// nonzero scores never displace an earlier winner.
		if score > bestScore || best < 0 {
			best = i
			bestScore = score
		}
	}

	if best >= 0 {
		partner := m.waiting[best].userID
		m.waiting = append(m.waiting[:best], m.waiting[best+1:]...)
		m.matches[id] = partner
		m.matches[partner] = id
		return partner, true
	}

	m.waiting = append(m.waiting, waitingEntry{
		userID:    id,
		interests: interests,
		pref:      pref,
		gender:    req.Gender,
	})
	return "", false
}

// Skip ends id's current match and immediately re-enters matching with the
// supplied preferences, atomically. Returns the old partner (if any) and the
// result of the fresh match attempt. Notifying the old partner is the
// caller's job.
func (m *Matchmaker) Skip(id string, req MatchRequest) (oldPartner string, hadMatch bool, newPartner string, matched bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldPartner, hadMatch = m.removeMatchLocked(id)
	newPartner, matched = m.findMatchLocked(id, req)
	return oldPartner, hadMatch, newPartner, matched
}

// RemoveMatch removes both directions of id's match, returning the partner.
func (m *Matchmaker) RemoveMatch(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeMatchLocked(id)
}

func (m *Matchmaker) removeMatchLocked(id string) (string, bool) {
	partner, ok := m.matches[id]
	if !ok {
		return "", false
	}
	delete(m.matches, id)
	delete(m.matches, partner)
	return partner, true
}

// Disconnect removes id from both the waiting pool and the match table,
// returning the abandoned partner if id was matched. Safe to call for ids the
// Matchmaker has never seen.
func (m *Matchmaker) Disconnect(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeWaitingLocked(id)
	return m.removeMatchLocked(id)
}

// PartnerOf returns id's current match partner.
func (m *Matchmaker) PartnerOf(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	partner, ok := m.matches[id]
	return partner, ok
}

func (m *Matchmaker) IsWaiting(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.waiting {
		if e.userID == id {
			return true
		}
	}
	return false
}

func (m *Matchmaker) WaitingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}

// MatchPairCount reports the number of active pairs; each pair occupies two
// entries in the table.
func (m *Matchmaker) MatchPairCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matches) / 2
}

func (m *Matchmaker) removeWaitingLocked(id string) {
	for i, e := range m.waiting {
		if e.userID == id {
			m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
			return
		}
	}
}

// genderCompatible checks the filter both ways: each side's preference must
// accept the other side's disclosed gender. An undisclosed gender passes any
// filter.
func genderCompatible(pref, gender, candidatePref, candidateGender string) bool {
	if pref != GenderAny && candidateGender != "" && candidateGender != pref {
		return false
	}
	if candidatePref != GenderAny && gender != "" && gender != candidatePref {
		return false
	}
	return true
}

// normalizeGender maps an absent preference to GenderAny. Values are
// otherwise compared verbatim; no case folding on either side.
func normalizeGender(pref string) string {
	if strings.TrimSpace(pref) == "" {
		return GenderAny
	}
	return pref
}

func interestSet(interests []string) map[string]struct{} {
	set := make(map[string]struct{}, len(interests))
	for _, tag := range interests {
		set[tag] = struct{}{}
	}
	return set
}
