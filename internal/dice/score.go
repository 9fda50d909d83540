// internal/dice/score.go
package dice

import (
	"encoding/json"
	"fmt"
)

// Category is the poker-style class of a hand. Higher categories always win.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	FullHouse
	FourOfAKind
	FiveOfAKind
)

var categoryNames = map[Category]string{
	HighCard:     "high_card",
	OnePair:      "one_pair",
	TwoPair:      "two_pair",
	ThreeOfAKind: "three_of_a_kind",
	Straight:     "straight",
	FullHouse:    "full_house",
	FourOfAKind:  "four_of_a_kind",
	FiveOfAKind:  "five_of_a_kind",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Score ranks a hand. Scores compare lexicographically: category first, then the
// tie-break values left to right. Unused tie-break slots are zero.
type Score struct {
	Category Category `json:"-"`
	Tiebreak [3]int   `json:"tiebreak"`
}

// Compare returns -1, 0 or +1 when s ranks below, equal to or above o.
func (s Score) Compare(o Score) int {
	if s.Category != o.Category {
		if s.Category < o.Category {
			return -1
		}
		return 1
	}
	for i := range s.Tiebreak {
		if s.Tiebreak[i] != o.Tiebreak[i] {
			if s.Tiebreak[i] < o.Tiebreak[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Beats reports whether s strictly outranks o.
func (s Score) Beats(o Score) bool {
	return s.Compare(o) > 0
}

func (s Score) String() string {
	return fmt.Sprintf("%s%v", s.Category, s.Tiebreak)
}

type scoreJSON struct {
	Category string `json:"category"`
	Rank     int    `json:"rank"`
	Tiebreak [3]int `json:"tiebreak"`
}

func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(scoreJSON{Category: s.Category.String(), Rank: int(s.Category), Tiebreak: s.Tiebreak})
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var raw scoreJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Rank < int(HighCard) || raw.Rank > int(FiveOfAKind) {
		return fmt.Errorf("invalid score category %d", raw.Rank)
	}
	s.Category = Category(raw.Rank)
	s.Tiebreak = raw.Tiebreak
	return nil
}

// Evaluate ranks a hand. The result does not depend on the order of the dice.
//
// Tie-breaks within a category use face ordinals (Nine=0 ... Ace=5):
//   - five of a kind: the face
//   - four of a kind: the kicker
//   - full house: the triple, then the pair
//   - straight / high card: the highest face
//   - three of a kind / one pair: the sum of the kickers
//   - two pair: the higher pair, the lower pair, then the kicker
func Evaluate(h Hand) Score {
	var counts [FaceCount]int
	for _, f := range h {
		counts[f]++
	}

	// singles holds faces seen once, pairs those seen twice; both in descending order.
	var singles, pairs []int
	triple, quad, five := -1, -1, -1
	for f := FaceCount - 1; f >= 0; f-- {
		switch counts[f] {
		case 1:
			singles = append(singles, f)
		case 2:
			pairs = append(pairs, f)
		case 3:
			triple = f
		case 4:
			quad = f
		case 5:
			five = f
		}
	}

	switch {
	case five >= 0:
		return Score{Category: FiveOfAKind, Tiebreak: [3]int{five}}
	case quad >= 0:
		return Score{Category: FourOfAKind, Tiebreak: [3]int{singles[0]}}
	case triple >= 0 && len(pairs) == 1:
		return Score{Category: FullHouse, Tiebreak: [3]int{triple, pairs[0]}}
	case triple >= 0:
		return Score{Category: ThreeOfAKind, Tiebreak: [3]int{sum(singles)}}
	case len(pairs) == 2:
		return Score{Category: TwoPair, Tiebreak: [3]int{pairs[0], pairs[1], singles[0]}}
	case len(pairs) == 1:
		return Score{Category: OnePair, Tiebreak: [3]int{sum(singles)}}
	}

	// five distinct faces out of six: consecutive unless a middle face is missing
	high, low := singles[0], singles[len(singles)-1]
	if high-low == HandSize-1 {
		return Score{Category: Straight, Tiebreak: [3]int{high}}
	}
	return Score{Category: HighCard, Tiebreak: [3]int{high}}
}

func sum(vals []int) int {
	total := 0
	for _, v := range vals {
		total += v
	}
	return total
}
