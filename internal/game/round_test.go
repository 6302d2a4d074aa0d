package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liarsdeck/liars-server-go/internal/deck"
	"github.com/liarsdeck/liars-server-go/internal/protocol"
)

func setHand(r *Room, playerID string, cards []deck.Card) {
	r.mu.Lock()
	r.hands[playerID].Cards = cards
	r.mu.Unlock()
}

func king(id string) deck.Card  { return deck.Card{ID: id, Rank: deck.RankKing, Suit: deck.SuitHearts} }
func queen(id string) deck.Card { return deck.Card{ID: id, Rank: deck.RankQueen, Suit: deck.SuitClubs} }
func ace(id string) deck.Card   { return deck.Card{ID: id, Rank: deck.RankAce} }

func TestOpeningPlaySetsCurrentCardType(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	transports := seatPlayers(t, r, 4)

	first := currentPlayerID(r)
	setHand(r, first, []deck.Card{king("k1"), queen("q1")})

	require.NoError(t, r.PlayCard(first, "k1", ""))

	r.mu.Lock()
	assert.Equal(t, deck.RankKing, r.round.currentCardType)
	assert.Len(t, r.round.playedCards, 1)
	assert.Equal(t, first, r.round.lastPlayerID)
	r.mu.Unlock()

	echo, ok := transports[first].lastOfType(protocol.EventCardPlayed)
	require.True(t, ok)
	assert.Equal(t, "k1", echo.Payload.(protocol.CardPlayedPayload).Card.ID)

	second := currentPlayerID(r)
	require.NotEqual(t, first, second)
	seen, ok := transports[second].lastOfType(protocol.EventOpponentPlayedCard)
	require.True(t, ok)
	assert.Equal(t, deck.RankKing, seen.Payload.(protocol.OpponentPlayedPayload).DeclaredType)

	turn, ok := transports[second].lastOfType(protocol.EventYourTurn)
	require.True(t, ok)
	payload := turn.Payload.(protocol.YourTurnPayload)
	assert.False(t, payload.OpeningPlay)
	assert.Equal(t, deck.RankKing, payload.RequiredType)
	assert.True(t, payload.CanChallenge)
}

func TestPlayCardRejectsOutOfTurn(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	seatPlayers(t, r, 4)

	first := currentPlayerID(r)
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		if name == first {
			continue
		}
		err := r.PlayCard(name, "whatever", "")
		assert.ErrorIs(t, err, ErrNotYourTurn, "player %s", name)
	}
}

func TestPlayCardRejectsCardNotInHand(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	seatPlayers(t, r, 4)

	first := currentPlayerID(r)
	err := r.PlayCard(first, "not-a-card", "")
	assert.ErrorIs(t, err, ErrCardNotInHand)
}

func TestNonMatchingNaturalCardIsIllegal(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	seatPlayers(t, r, 4)

	first := currentPlayerID(r)
	setHand(r, first, []deck.Card{king("k1"), king("k2")})
	require.NoError(t, r.PlayCard(first, "k1", ""))

	second := currentPlayerID(r)
	setHand(r, second, []deck.Card{queen("q1"), queen("q2")})
	err := r.PlayCard(second, "q1", "")
	assert.ErrorIs(t, err, ErrIllegalPlay)

	// Rejections never mutate state.
	r.mu.Lock()
	assert.Len(t, r.round.playedCards, 1)
	assert.Len(t, r.hands[second].Cards, 2)
	r.mu.Unlock()
	assert.Equal(t, second, currentPlayerID(r))
}

func TestWildCardDeclarationRules(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	transports := seatPlayers(t, r, 4)

	first := currentPlayerID(r)
	setHand(r, first, []deck.Card{king("k1"), king("k2")})
	require.NoError(t, r.PlayCard(first, "k1", ""))

	second := currentPlayerID(r)
	setHand(r, second, []deck.Card{ace("a1"), queen("q1")})

	assert.ErrorIs(t, r.PlayCard(second, "a1", ""), ErrDeclarationRequired)
	assert.ErrorIs(t, r.PlayCard(second, "a1", deck.RankAce), ErrInvalidDeclaration)

	// A wild is legal against any required type.
	require.NoError(t, r.PlayCard(second, "a1", deck.RankKing))

	third := currentPlayerID(r)
	seen, ok := transports[third].lastOfType(protocol.EventOpponentPlayedCard)
	require.True(t, ok)
	assert.Equal(t, deck.RankKing, seen.Payload.(protocol.OpponentPlayedPayload).DeclaredType)
}

func TestMidRoundWildAnnouncesTableType(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	transports := seatPlayers(t, r, 4)

	first := currentPlayerID(r)
	setHand(r, first, []deck.Card{king("k1"), king("k2")})
	require.NoError(t, r.PlayCard(first, "k1", ""))

	// Declaring Queen in a King round would out the card as a wild; the
	// table type wins.
	second := currentPlayerID(r)
	setHand(r, second, []deck.Card{ace("a1"), queen("q1")})
	require.NoError(t, r.PlayCard(second, "a1", deck.RankQueen))

	third := currentPlayerID(r)
	seen, ok := transports[third].lastOfType(protocol.EventOpponentPlayedCard)
	require.True(t, ok)
	assert.Equal(t, deck.RankKing, seen.Payload.(protocol.OpponentPlayedPayload).DeclaredType)

	r.mu.Lock()
	assert.Equal(t, deck.RankKing, r.round.lastDeclaredType)
	r.mu.Unlock()
}

func TestOpeningWildSetsTypeToDeclaredRank(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	seatPlayers(t, r, 4)

	first := currentPlayerID(r)
	setHand(r, first, []deck.Card{ace("a1"), king("k1")})
	require.NoError(t, r.PlayCard(first, "a1", deck.RankQueen))

	r.mu.Lock()
	assert.Equal(t, deck.RankQueen, r.round.currentCardType)
	r.mu.Unlock()
}

func TestPlayTwiceInOneRoundRejected(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	seatPlayers(t, r, 4)

	first := currentPlayerID(r)
	setHand(r, first, []deck.Card{king("k1"), king("k2")})
	require.NoError(t, r.PlayCard(first, "k1", ""))

	// Not their turn anymore, and even on their turn the round flag
	// would block a second play.
	err := r.PlayCard(first, "k2", "")
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestRoundResetsAfterAllEligiblePlayersPlayed(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	transports := seatPlayers(t, r, 4)

	order := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		id := currentPlayerID(r)
		order = append(order, id)
		setHand(r, id, []deck.Card{king("k-" + id + "-1"), king("k-" + id + "-2")})
		require.NoError(t, r.PlayCard(id, "k-"+id+"-1", ""))
	}
	assert.Len(t, order, 4)

	r.mu.Lock()
	assert.Equal(t, 2, r.round.number)
	assert.Equal(t, deck.Rank(""), r.round.currentCardType)
	assert.Empty(t, r.round.playedCards)
	for _, h := range r.hands {
		assert.False(t, h.HasPlayedThisTurn)
	}
	r.mu.Unlock()

	// The first player opens the new round.
	opener := currentPlayerID(r)
	assert.Equal(t, order[0], opener)
	turn, ok := transports[opener].lastOfType(protocol.EventYourTurn)
	require.True(t, ok)
	assert.True(t, turn.Payload.(protocol.YourTurnPayload).OpeningPlay)
}

func TestTurnTimeoutForfeitsAndAdvances(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = 40 * time.Millisecond
	r := newTestRoom(t, cfg)
	transports := seatPlayers(t, r, 4)

	first := currentPlayerID(r)
	require.Eventually(t, func() bool {
		return currentPlayerID(r) != first
	}, time.Second, 5*time.Millisecond)

	_, ok := transports[first].lastOfType(protocol.EventTurnTimeout)
	assert.True(t, ok)

	next := currentPlayerID(r)
	_, ok = transports[next].lastOfType(protocol.EventPlayerTimeout)
	assert.True(t, ok)
	_, ok = transports[next].lastOfType(protocol.EventYourTurn)
	assert.True(t, ok)

	r.mu.Lock()
	assert.True(t, r.hands[first].HasPlayedThisTurn)
	assert.False(t, r.hands[first].IsEliminated, "a timeout is a forfeit, not an elimination")
	r.mu.Unlock()
}

func TestCancelledTimerNeverFires(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = 60 * time.Millisecond
	r := newTestRoom(t, cfg)
	transports := seatPlayers(t, r, 4)

	first := currentPlayerID(r)
	setHand(r, first, []deck.Card{king("k1"), king("k2")})
	require.NoError(t, r.PlayCard(first, "k1", ""))

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, transports[first].eventsOfType(protocol.EventTurnTimeout))
}

func TestWinOnEmptyHand(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	cfg.NextGameDelay = 30 * time.Millisecond
	r := newTestRoom(t, cfg)
	transports := seatPlayers(t, r, 4)

	winner := currentPlayerID(r)
	setHand(r, winner, []deck.Card{king("k1")})

	turnsBefore := make(map[string]int, 4)
	for id, tr := range transports {
		turnsBefore[id] = len(tr.eventsOfType(protocol.EventYourTurn))
	}

	require.NoError(t, r.PlayCard(winner, "k1", ""))

	for id, tr := range transports {
		finished, ok := tr.lastOfType(protocol.EventGameFinished)
		require.True(t, ok, "player %s", id)
		payload := finished.Payload.(protocol.GameFinishedPayload)
		assert.Equal(t, winner, payload.WinnerID)
		assert.Equal(t, 1, payload.Score)

		assert.Equal(t, turnsBefore[id], len(tr.eventsOfType(protocol.EventYourTurn)),
			"no turn starts after the game finished")
	}

	assert.Equal(t, StatusWaiting, r.Status(), "finished is a waiting sub-state")
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.round.phase == PhaseWaiting
	}, time.Second, 5*time.Millisecond)

	r.mu.Lock()
	assert.Equal(t, 1, r.hands[winner].Score, "score survives the reset")
	for _, h := range r.hands {
		assert.Empty(t, h.Cards)
		assert.False(t, h.IsReady)
	}
	r.mu.Unlock()
}

func TestReadyHandshakeStartsNextGame(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	transports := seatPlayers(t, r, 2) // below capacity, waits for ready-up

	require.Equal(t, StatusWaiting, r.Status())

	require.NoError(t, r.Ready("alice"))
	ev, ok := transports["bob"].lastOfType(protocol.EventNextGameReady)
	require.True(t, ok)
	payload := ev.Payload.(protocol.ReadyPayload)
	assert.Equal(t, "alice", payload.PlayerID)
	assert.False(t, payload.ReadyAll)
	require.Equal(t, StatusWaiting, r.Status())

	require.NoError(t, r.Ready("bob"))
	assert.Equal(t, StatusPlaying, r.Status())
	for _, tr := range transports {
		assert.Len(t, tr.eventsOfType(protocol.EventGameStarted), 1)
		dealt := tr.eventsOfType(protocol.EventHandDealt)
		require.Len(t, dealt, 1)
		assert.Len(t, dealt[0].Payload.(protocol.HandPayload).Cards, 5)
	}
}

func TestReadyRejectedMidGame(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	seatPlayers(t, r, 4)

	assert.ErrorIs(t, r.Ready("alice"), ErrGameInProgress)
}

func TestHandConservationAfterDeal(t *testing.T) {
	cfg := testGameConfig()
	cfg.TurnTimeLimit = time.Hour
	r := newTestRoom(t, cfg)
	seatPlayers(t, r, 4)

	r.mu.Lock()
	total := len(r.drawPile) + len(r.round.playedCards)
	for _, h := range r.hands {
		total += len(h.Cards)
	}
	r.mu.Unlock()
	assert.Equal(t, deck.Size, total)
}
