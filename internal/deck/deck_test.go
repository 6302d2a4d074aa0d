package deck

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComposition(t *testing.T) {
	d := New()
	require.Equal(t, Size, d.Remaining())

	counts := make(map[Rank]int)
	seen := make(map[string]bool)
	for _, c := range d.cards {
		counts[c.Rank]++
		assert.False(t, seen[c.ID], "duplicate card id %s", c.ID)
		seen[c.ID] = true
		if c.Wild() {
			assert.Empty(t, c.Suit, "wild cards carry no suit")
		} else {
			assert.NotEmpty(t, c.Suit)
		}
	}

	assert.Equal(t, 6, counts[RankKing])
	assert.Equal(t, 6, counts[RankQueen])
	assert.Equal(t, 6, counts[RankJack])
	assert.Equal(t, 2, counts[RankAce])
}

func TestNewWithRandDeterministic(t *testing.T) {
	a := NewWithRand(rand.New(rand.NewSource(7)))
	b := NewWithRand(rand.New(rand.NewSource(7)))

	require.Equal(t, a.Remaining(), b.Remaining())
	for i := range a.cards {
		assert.Equal(t, a.cards[i].Rank, b.cards[i].Rank)
		assert.Equal(t, a.cards[i].Suit, b.cards[i].Suit)
	}
}

func TestDealConservation(t *testing.T) {
	d := New()
	players := []string{"p1", "p2", "p3", "p4"}

	hands, err := d.Deal(players, 5)
	require.NoError(t, err)
	require.Len(t, hands, 4)

	total := d.Remaining()
	for _, id := range players {
		assert.Len(t, hands[id], 5)
		total += len(hands[id])
	}
	assert.Equal(t, Size, total, "dealt hands plus draw pile must equal deck size")
}

func TestDealOrderIsFrontOfDeck(t *testing.T) {
	d := NewWithRand(rand.New(rand.NewSource(1)))
	front := make([]Card, 10)
	copy(front, d.cards[:10])

	hands, err := d.Deal([]string{"a", "b"}, 5)
	require.NoError(t, err)

	assert.Equal(t, front[:5], hands["a"])
	assert.Equal(t, front[5:10], hands["b"])
	assert.Equal(t, Size-10, d.Remaining())
}

func TestDealInsufficientCards(t *testing.T) {
	d := New()
	_, err := d.Deal([]string{"a", "b", "c", "d", "e"}, 5)
	assert.Error(t, err, "5 players x 5 cards exceeds the 20-card deck")
}

func TestIsLegalPlay(t *testing.T) {
	king := Card{ID: "c1", Rank: RankKing, Suit: SuitHearts}
	queen := Card{ID: "c2", Rank: RankQueen, Suit: SuitClubs}
	wild := Card{ID: "c3", Rank: RankAce}

	tests := []struct {
		name     string
		card     Card
		required Rank
		want     bool
	}{
		{"opening play accepts any card", queen, "", true},
		{"matching rank", king, RankKing, true},
		{"mismatched rank", queen, RankKing, false},
		{"wild against a required rank", wild, RankJack, true},
		{"wild on the opening play", wild, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLegalPlay(tt.card, tt.required))
		})
	}
}

func TestRankValidation(t *testing.T) {
	assert.True(t, RankKing.Valid())
	assert.True(t, RankAce.Valid())
	assert.False(t, Rank("Joker").Valid())

	assert.True(t, RankQueen.Declarable())
	assert.False(t, RankAce.Declarable(), "a wild cannot be declared as itself")
	assert.False(t, Rank("").Declarable())
}
