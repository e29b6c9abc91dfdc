package state

import (
	"encoding/json"
	"sort"
	"time"

	"pixivwatch/pkg/pixiv"
)

// IDSet is a set of illust IDs. It serializes as a sorted JSON array so
// state dumps stay stable and diffable across runs.
type IDSet map[pixiv.IllustID]struct{}

// NewIDSet creates a set holding the given ids
func NewIDSet(ids ...pixiv.IllustID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts an id into the set
func (s IDSet) Add(id pixiv.IllustID) {
	s[id] = struct{}{}
}

// Contains reports whether id is a member
func (s IDSet) Contains(id pixiv.IllustID) bool {
	_, ok := s[id]
	return ok
}

// Union inserts all members of other into the set
func (s IDSet) Union(other IDSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Clone returns an independent copy of the set
func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Sorted returns the members in ascending order
func (s IDSet) Sorted() []pixiv.IllustID {
	ids := make([]pixiv.IllustID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MarshalJSON serializes the set as a sorted array
func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON deserializes an array into the set
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []pixiv.IllustID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}

// State is the durable traversal state. It has exactly one owner, the tick
// loop, and is mutated only by a successful refresh.
type State struct {
	// MarkerID is the most recently detected bookmarked work, zero before
	// any has ever been found.
	MarkerID pixiv.IllustID `json:"marker_id"`
	// Since is the local creation time of the marker work.
	Since time.Time `json:"since"`
	// Remain is true iff the last traversal stopped because the page budget
	// was exhausted before a marker was found.
	Remain bool `json:"remain"`
	// Skip is true iff the last traversal stopped early via the
	// convergence heuristic.
	Skip bool `json:"skip"`
	// Visited holds the ids observed ahead of the marker during the most
	// recently completed traversal.
	Visited IDSet `json:"visited"`
}

// New returns the default state used on first run or after a failed load
func New() *State {
	return &State{
		Since:   time.Unix(0, 0).UTC(),
		Visited: NewIDSet(),
	}
}

// Clone returns an independent deep copy, used as the scratch working copy
// during a traversal
func (s *State) Clone() *State {
	c := *s
	c.Visited = s.Visited.Clone()
	return &c
}

// Distance is the count of works observed ahead of the marker
func (s *State) Distance() int {
	return len(s.Visited)
}

// Token is the change-detection token. It has no meaning beyond detecting
// that something worth notifying about changed; the zero Token is the
// sentinel that forces the next comparison to mismatch.
type Token struct {
	MarkerID pixiv.IllustID
	Distance int
}

// Token returns the current comparison token
func (s *State) Token() Token {
	return Token{MarkerID: s.MarkerID, Distance: s.Distance()}
}

// Dump is the full durable record: the auth session blob plus the
// traversal state, flattened into one JSON object.
type Dump struct {
	Auth pixiv.State `json:"auth"`
	State
}
