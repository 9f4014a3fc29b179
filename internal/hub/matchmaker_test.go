package hub

import "testing"

// seedWaiting plants a waiting entry directly, bypassing FindMatch so the
// pool can hold mutually compatible users at the same time.
func seedWaiting(m *Matchmaker, id string, interests ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiting = append(m.waiting, waitingEntry{
		userID:    id,
		interests: interestSet(interests),
		pref:      GenderAny,
	})
}

func TestFindMatchEmptyPoolEnqueues(t *testing.T) {
	m := NewMatchmaker()

	partner, matched := m.FindMatch("a", MatchRequest{Interests: []string{"music"}})
	if matched {
		t.Fatalf("matched with %q against an empty pool", partner)
	}
	if !m.IsWaiting("a") {
		t.Error("a should be waiting")
	}
	if m.WaitingCount() != 1 {
		t.Errorf("WaitingCount = %d, want 1", m.WaitingCount())
	}
}

func TestFindMatchSharedInterest(t *testing.T) {
	m := NewMatchmaker()

	m.FindMatch("a", MatchRequest{Interests: []string{"music", "sports"}})
	partner, matched := m.FindMatch("b", MatchRequest{Interests: []string{"sports"}})
	if !matched || partner != "a" {
		t.Fatalf("FindMatch(b) = (%q, %v), want (a, true)", partner, matched)
	}

	if p, ok := m.PartnerOf("a"); !ok || p != "b" {
		t.Errorf("PartnerOf(a) = (%q, %v), want (b, true)", p, ok)
	}
	if m.IsWaiting("a") || m.IsWaiting("b") {
		t.Error("matched users must not remain waiting")
	}
}

func TestFindMatchGenderFilterBothDirections(t *testing.T) {
	m := NewMatchmaker()

	// a only wants female partners; b is male.
	m.FindMatch("a", MatchRequest{PreferredGender: "female"})
	partner, matched := m.FindMatch("b", MatchRequest{Gender: "male"})
	if matched {
		t.Fatalf("b matched %q despite a's preference", partner)
	}
	if !m.IsWaiting("a") || !m.IsWaiting("b") {
		t.Error("both users should be waiting")
	}

	// c is female and passes a's filter.
	partner, matched = m.FindMatch("c", MatchRequest{Gender: "female"})
	if !matched || partner != "a" {
		t.Fatalf("FindMatch(c) = (%q, %v), want (a, true)", partner, matched)
	}
}

func TestGenderComparedVerbatim(t *testing.T) {
	m := NewMatchmaker()

	// Values match only when byte-identical; neither side is case folded.
	m.FindMatch("a", MatchRequest{PreferredGender: "female"})
	partner, matched := m.FindMatch("b", MatchRequest{Gender: "Female"})
	if matched {
		t.Fatalf("b matched %q; %q must not satisfy a %q filter", partner, "Female", "female")
	}

	partner, matched = m.FindMatch("c", MatchRequest{Gender: "female"})
	if !matched || partner != "a" {
		t.Fatalf("FindMatch(c) = (%q, %v), want (a, true)", partner, matched)
	}
}

func TestFindMatchUndisclosedGenderPassesFilter(t *testing.T) {
	m := NewMatchmaker()

	m.FindMatch("a", MatchRequest{PreferredGender: "female"})
	partner, matched := m.FindMatch("b", MatchRequest{})
	if !matched || partner != "a" {
		t.Fatalf("FindMatch(b) = (%q, %v), want (a, true): empty gender passes any filter", partner, matched)
	}
}

func TestFindMatchFirstMaxScoreWins(t *testing.T) {
	m := NewMatchmaker()

	seedWaiting(m, "low", "music")
	seedWaiting(m, "high1", "music", "sports")
	seedWaiting(m, "high2", "music", "sports")

	// high1 and high2 tie at score 2; the earlier entry wins.
	partner, matched := m.FindMatch("x", MatchRequest{Interests: []string{"music", "sports"}})
	if !matched || partner != "high1" {
		t.Fatalf("FindMatch(x) = (%q, %v), want (high1, true)", partner, matched)
	}
	if !m.IsWaiting("low") || !m.IsWaiting("high2") {
		t.Error("losing candidates must stay in the pool")
	}
}

func TestFindMatchFallbackToFirstCompatible(t *testing.T) {
	m := NewMatchmaker()

	seedWaiting(m, "a", "chess")
	seedWaiting(m, "b", "hiking")

	// No overlap anywhere: the first compatible candidate is still taken.
	partner, matched := m.FindMatch("x", MatchRequest{Interests: []string{"music"}})
	if !matched || partner != "a" {
		t.Fatalf("FindMatch(x) = (%q, %v), want (a, true)", partner, matched)
	}
}

func TestFindMatchLaterHigherScoreDisplacesFallback(t *testing.T) {
	m := NewMatchmaker()

	seedWaiting(m, "a", "chess")
	seedWaiting(m, "b", "music")

	// a is the provisional score-0 fallback; b scores 1 and takes over.
	partner, matched := m.FindMatch("x", MatchRequest{Interests: []string{"music"}})
	if !matched || partner != "b" {
		t.Fatalf("FindMatch(x) = (%q, %v), want (b, true)", partner, matched)
	}
}

func TestFindMatchDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		m := NewMatchmaker()
		seedWaiting(m, "a", "go")
		seedWaiting(m, "b", "go")
		seedWaiting(m, "c", "go")

		partner, matched := m.FindMatch("x", MatchRequest{Interests: []string{"go"}})
		if !matched || partner != "a" {
			t.Fatalf("run %d: FindMatch(x) = (%q, %v), want (a, true)", i, partner, matched)
		}
	}
}

func TestFindMatchReRequestReplacesWaitingEntry(t *testing.T) {
	m := NewMatchmaker()

	m.FindMatch("a", MatchRequest{PreferredGender: "female"})
	m.FindMatch("a", MatchRequest{})
	if m.WaitingCount() != 1 {
		t.Fatalf("WaitingCount = %d, want 1", m.WaitingCount())
	}

	// The replacement dropped the gender filter, so a male user now matches.
	partner, matched := m.FindMatch("b", MatchRequest{Gender: "male"})
	if !matched || partner != "a" {
		t.Fatalf("FindMatch(b) = (%q, %v), want (a, true)", partner, matched)
	}
}

func TestMatchSymmetryAndRemoveMatch(t *testing.T) {
	m := NewMatchmaker()

	m.FindMatch("a", MatchRequest{})
	m.FindMatch("b", MatchRequest{})

	pa, oka := m.PartnerOf("a")
	pb, okb := m.PartnerOf("b")
	if !oka || !okb || pa != "b" || pb != "a" {
		t.Fatalf("match table asymmetric: a→(%q,%v) b→(%q,%v)", pa, oka, pb, okb)
	}

	partner, ok := m.RemoveMatch("a")
	if !ok || partner != "b" {
		t.Fatalf("RemoveMatch(a) = (%q, %v), want (b, true)", partner, ok)
	}
	if _, ok := m.PartnerOf("b"); ok {
		t.Error("b still matched after RemoveMatch(a)")
	}
	if m.MatchPairCount() != 0 {
		t.Errorf("MatchPairCount = %d, want 0", m.MatchPairCount())
	}
}

func TestSkipRematchesAtomically(t *testing.T) {
	m := NewMatchmaker()

	m.FindMatch("a", MatchRequest{})
	m.FindMatch("b", MatchRequest{})
	m.FindMatch("c", MatchRequest{})

	oldPartner, hadMatch, newPartner, matched := m.Skip("b", MatchRequest{})
	if !hadMatch || oldPartner != "a" {
		t.Fatalf("Skip(b) old = (%q, %v), want (a, true)", oldPartner, hadMatch)
	}
	if !matched || newPartner != "c" {
		t.Fatalf("Skip(b) new = (%q, %v), want (c, true)", newPartner, matched)
	}
	if _, ok := m.PartnerOf("a"); ok {
		t.Error("a still matched after being skipped")
	}
}

func TestSkipWithEmptyPoolEnqueues(t *testing.T) {
	m := NewMatchmaker()

	m.FindMatch("a", MatchRequest{})
	m.FindMatch("b", MatchRequest{})

	// The abandoned partner does not re-enter the pool on its own, so a has
	// nobody to match and queues up.
	_, _, _, matched := m.Skip("a", MatchRequest{})
	if matched {
		t.Fatal("Skip(a) matched, want waiting")
	}
	if !m.IsWaiting("a") {
		t.Error("a should be waiting after skip with empty pool")
	}
}

func TestDisconnectClearsWaitingAndMatch(t *testing.T) {
	m := NewMatchmaker()

	m.FindMatch("a", MatchRequest{})
	if partner, had := m.Disconnect("a"); had {
		t.Fatalf("Disconnect(waiting a) reported partner %q", partner)
	}
	if m.IsWaiting("a") {
		t.Error("a still waiting after disconnect")
	}

	m.FindMatch("a", MatchRequest{})
	m.FindMatch("b", MatchRequest{})
	partner, had := m.Disconnect("a")
	if !had || partner != "b" {
		t.Fatalf("Disconnect(a) = (%q, %v), want (b, true)", partner, had)
	}

	// Unknown ids are fine.
	if _, had := m.Disconnect("ghost"); had {
		t.Error("Disconnect(ghost) reported a partner")
	}
}

func TestWaitingAndMatchMutuallyExclusive(t *testing.T) {
	m := NewMatchmaker()

	m.FindMatch("a", MatchRequest{})
	m.FindMatch("b", MatchRequest{})
	m.FindMatch("c", MatchRequest{})

	for _, id := range []string{"a", "b", "c"} {
		_, matched := m.PartnerOf(id)
		if matched && m.IsWaiting(id) {
			t.Errorf("%s is both matched and waiting", id)
		}
	}
	if m.WaitingCount() != 1 || m.MatchPairCount() != 1 {
		t.Errorf("counts = (waiting %d, pairs %d), want (1, 1)", m.WaitingCount(), m.MatchPairCount())
	}
}
