package deck

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// Rank identifies a card face. The wild Ace may stand in for any
// declared rank.
type Rank string

const (
	RankKing  Rank = "King"
	RankQueen Rank = "Queen"
	RankJack  Rank = "Jack"
	RankAce   Rank = "Ace"
)

// Suit identifies a card suit. Wild cards carry no suit.
type Suit string

const (
	SuitHearts   Suit = "Hearts"
	SuitDiamonds Suit = "Diamonds"
	SuitClubs    Suit = "Clubs"
	SuitSpades   Suit = "Spades"
)

var suits = []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

// DeclarableRanks are the ranks a wild card may be declared as.
var DeclarableRanks = []Rank{RankKing, RankQueen, RankJack}

// Valid reports whether r is a rank this deck contains.
func (r Rank) Valid() bool {
	switch r {
	case RankKing, RankQueen, RankJack, RankAce:
		return true
	}
	return false
}

// Declarable reports whether r may be named as the declared type of a
// wild card play.
func (r Rank) Declarable() bool {
	switch r {
	case RankKing, RankQueen, RankJack:
		return true
	}
	return false
}

// Card is an immutable card value.
type Card struct {
	ID   string `json:"id"`
	Rank Rank   `json:"rank"`
	Suit Suit   `json:"suit,omitempty"`
}

// Wild reports whether the card may stand in for any declared rank.
func (c Card) Wild() bool {
	return c.Rank == RankAce
}

// Size is the number of cards a freshly built deck contains:
// 6 each of King, Queen and Jack plus 2 wild Aces.
const Size = 20

const copiesPerRank = 6

// Deck is an ordered sequence of cards owned by a single game session.
type Deck struct {
	cards []Card
}

// New builds the fixed 20-card composition and shuffles it uniformly
// with the package-level random source.
func New() *Deck {
	return NewWithRand(nil)
}

// NewWithRand builds and shuffles a deck using r. A nil r falls back to
// the package-level random source; tests pass a seeded source for
// deterministic ordering.
func NewWithRand(r *rand.Rand) *Deck {
	cards := make([]Card, 0, Size)
	for _, rank := range []Rank{RankKing, RankQueen, RankJack} {
		for i := 0; i < copiesPerRank; i++ {
			cards = append(cards, Card{
				ID:   uuid.NewString(),
				Rank: rank,
				Suit: suits[i%len(suits)],
			})
		}
	}
	for i := 0; i < Size-3*copiesPerRank; i++ {
		cards = append(cards, Card{ID: uuid.NewString(), Rank: RankAce})
	}

	swap := func(i, j int) { cards[i], cards[j] = cards[j], cards[i] }
	if r != nil {
		r.Shuffle(len(cards), swap)
	} else {
		rand.Shuffle(len(cards), swap)
	}

	return &Deck{cards: cards}
}

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Deal removes handSize cards per player from the front of the deck in
// player order. The caller keeps the remainder as the draw pile.
func (d *Deck) Deal(playerIDs []string, handSize int) (map[string][]Card, error) {
	need := handSize * len(playerIDs)
	if len(d.cards) < need {
		return nil, fmt.Errorf("deck has %d cards, need %d for %d players", len(d.cards), need, len(playerIDs))
	}

	hands := make(map[string][]Card, len(playerIDs))
	for _, id := range playerIDs {
		hand := make([]Card, handSize)
		copy(hand, d.cards[:handSize])
		d.cards = d.cards[handSize:]
		hands[id] = hand
	}
	return hands, nil
}

// Rest drains and returns every undealt card, in order. The result is
// the draw pile once all hands are dealt.
func (d *Deck) Rest() []Card {
	rest := d.cards
	d.cards = nil
	return rest
}

// IsLegalPlay reports whether card may be played against the round's
// required rank. An empty required rank means the play opens the round
// and any card is legal; wild cards are always legal.
func IsLegalPlay(card Card, required Rank) bool {
	if required == "" {
		return true
	}
	if card.Wild() {
		return true
	}
	return card.Rank == required
}
