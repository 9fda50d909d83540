// internal/dice/dice.go
package dice

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// HandSize is the number of dice in a poker dice hand.
const HandSize = 5

// ErrInvalidIndex is returned when a reroll index falls outside [0, HandSize).
var ErrInvalidIndex = errors.New("dice index out of range")

// Face is one of the six symbolic die faces, ordered low to high.
type Face int

const (
	Nine Face = iota
	Ten
	Jack
	Queen
	King
	Ace
)

// FaceCount is the number of distinct faces on a die.
const FaceCount = 6

var faceNames = [FaceCount]string{"9", "10", "J", "Q", "K", "A"}

func (f Face) String() string {
	if f < Nine || f > Ace {
		return "?"
	}
	return faceNames[f]
}

// Valid reports whether f is one of the six faces.
func (f Face) Valid() bool {
	return f >= Nine && f <= Ace
}

// MarshalJSON encodes a face by its symbol ("9", "10", "J", ...).
func (f Face) MarshalJSON() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid face %d", int(f))
	}
	return json.Marshal(f.String())
}

// UnmarshalJSON accepts the face symbol.
func (f *Face) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFace(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFace converts a face symbol back into a Face.
func ParseFace(s string) (Face, error) {
	for i, name := range faceNames {
		if name == s {
			return Face(i), nil
		}
	}
	return 0, fmt.Errorf("unknown face %q", s)
}

// Hand is an ordered set of five faces.
type Hand [HandSize]Face

func (h Hand) String() string {
	return fmt.Sprintf("[%s %s %s %s %s]", h[0], h[1], h[2], h[3], h[4])
}

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

// lockedSource guards a math/rand generator, which is not safe for concurrent use on its own.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}

// NewSource returns a time-seeded Source.
func NewSource() Source {
	return &lockedSource{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeededSource returns a deterministic Source, mostly useful for simulations.
func NewSeededSource(seed int64) Source {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

// Roller draws faces from a Source.
type Roller struct {
	src Source
}

// NewRoller wraps src. A nil src falls back to a time-seeded source.
func NewRoller(src Source) *Roller {
	if src == nil {
		src = NewSource()
	}
	return &Roller{src: src}
}

func (r *Roller) face() Face {
	return Face(r.src.Intn(FaceCount))
}

// Roll draws five faces independently and uniformly, with replacement.
func (r *Roller) Roll() Hand {
	var h Hand
	for i := range h {
		h[i] = r.face()
	}
	return h
}

// Reroll redraws the dice at the given positions and keeps every other face.
// The indices name the dice to throw again, not the dice to keep.
func (r *Roller) Reroll(prev Hand, indices []int) (Hand, error) {
	var reroll [HandSize]bool
	for _, idx := range indices {
		if idx < 0 || idx >= HandSize {
			return prev, fmt.Errorf("%w: %d", ErrInvalidIndex, idx)
		}
		reroll[idx] = true
	}
	next := prev
	for i := range next {
		if reroll[i] {
			next[i] = r.face()
		}
	}
	return next, nil
}
