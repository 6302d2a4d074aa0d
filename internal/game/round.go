package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/liarsdeck/liars-server-go/internal/deck"
	"github.com/liarsdeck/liars-server-go/internal/protocol"
)

// maxRiskLevel is the ceiling of the elimination counter; a punished
// player at this level is eliminated with certainty.
const maxRiskLevel = 6

// startGameLocked deals fresh hands and begins the first player's
// turn. Callers guarantee at least two seated players.
func (r *Room) startGameLocked() {
	r.generation++
	if r.resetTimer != nil {
		r.resetTimer.Stop()
		r.resetTimer = nil
	}

	playerIDs := make([]string, len(r.players))
	for i, p := range r.players {
		playerIDs[i] = p.ID
	}

	d := deck.NewWithRand(r.rng)
	hands, err := d.Deal(playerIDs, r.cfg.HandSize)
	if err != nil {
		// Guarded by config validation; a failure here means the room
		// outgrew the deck, which cannot happen through Join.
		r.logger.Error("deal failed", zap.Error(err))
		return
	}

	for id, cards := range hands {
		h := r.hands[id]
		h.Cards = cards
		h.HasPlayedThisTurn = false
		h.IsReady = false
		h.RiskLevel = 0
		h.IsEliminated = false
		h.IsInactive = false
	}
	r.drawPile = d.Rest()

	r.status = StatusPlaying
	r.round = round{phase: PhasePlaying, number: 1, direction: 1}

	r.logger.Info("game started", zap.Int("players", len(r.players)))

	r.bc.ToRoom(r.rosterLocked(), protocol.EventGameStarted, protocol.GameStartedPayload{
		RoomCode:        r.Code,
		RoomCapacity:    r.cfg.RoomCapacity,
		HandSize:        r.cfg.HandSize,
		DeckSize:        deck.Size,
		TurnTimeLimitMs: r.cfg.TurnTimeLimit.Milliseconds(),
	})
	for _, p := range r.players {
		if p.Connected() {
			r.bc.SendTo(p.transport, protocol.EventHandDealt, protocol.HandPayload{Cards: r.hands[p.ID].Cards})
		}
	}
	r.broadcastStateLocked()

	r.beginTurnLocked()
}

// beginTurnLocked starts the turn of the player at currentIndex. A
// player with no live transport, or one eliminated mid-game by a
// challenge, never holds up the table: the resolver advances past them
// immediately.
func (r *Room) beginTurnLocked() {
	r.cancelTurnTimerLocked()

	if len(r.players) == 0 {
		return
	}
	if r.round.currentIndex >= len(r.players) {
		r.round.currentIndex = 0
	}

	p := r.players[r.round.currentIndex]
	hand := r.hands[p.ID]
	if !p.Connected() || hand.IsEliminated || hand.IsInactive {
		r.advanceTurnLocked()
		return
	}

	canChallenge := r.round.lastPlayedCard != nil && r.round.lastPlayerID != p.ID

	r.bc.SendTo(p.transport, protocol.EventYourTurn, protocol.YourTurnPayload{
		TimeLimitMs:  r.cfg.TurnTimeLimit.Milliseconds(),
		OpeningPlay:  r.round.currentCardType == "",
		RequiredType: r.round.currentCardType,
		CanChallenge: canChallenge,
	})
	r.bc.ToOthers(r.rosterLocked(), p.ID, protocol.EventPlayerTurn, protocol.PlayerTurnPayload{
		PlayerID:     p.ID,
		RequiredType: r.round.currentCardType,
	})

	r.armTurnTimerLocked()
}

// armTurnTimerLocked schedules the turn deadline. The captured epoch
// and generation are validated under the lock at fire time; a timer
// superseded by a play, a new turn or a room teardown is a silent
// no-op.
func (r *Room) armTurnTimerLocked() {
	r.turnEpoch++
	epoch := r.turnEpoch
	gen := r.generation

	r.turnTimer = time.AfterFunc(r.cfg.TurnTimeLimit, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.closed || r.generation != gen || r.turnEpoch != epoch || r.round.phase != PhasePlaying {
			return
		}
		r.handleTimeoutLocked()
	})
}

// cancelTurnTimerLocked stops the armed timer and bumps the epoch so an
// in-flight fire is recognized as stale.
func (r *Room) cancelTurnTimerLocked() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
	r.turnEpoch++
}

// handleTimeoutLocked expires the current player's turn. Timing out is
// not an elimination by itself; the turn is simply forfeited and
// counts as the player's play for round-completion purposes.
func (r *Room) handleTimeoutLocked() {
	r.turnTimer = nil
	if r.round.currentIndex >= len(r.players) {
		return
	}
	p := r.players[r.round.currentIndex]

	r.logger.Info("turn timed out", zap.String("participant_id", p.ID))

	if hand, ok := r.hands[p.ID]; ok {
		hand.HasPlayedThisTurn = true
	}

	if p.Connected() {
		r.bc.SendTo(p.transport, protocol.EventTurnTimeout, protocol.TimeoutPayload{PlayerID: p.ID})
	}
	r.bc.ToOthers(r.rosterLocked(), p.ID, protocol.EventPlayerTimeout, protocol.TimeoutPayload{PlayerID: p.ID})

	r.advanceTurnLocked()
}

// advanceTurnLocked moves to the next eligible player, resetting the
// round once every eligible player has taken their play.
func (r *Room) advanceTurnLocked() {
	if r.closed || r.status != StatusPlaying {
		return
	}

	if r.roundCompleteLocked() {
		r.resetRoundLocked()
	}

	next := r.nextEligibleLocked()
	if next == nil {
		r.resolveWinLocked(nil)
		return
	}
	r.beginTurnLocked()
}

// roundCompleteLocked reports whether every eligible player has played
// (or forfeited) this round.
func (r *Room) roundCompleteLocked() bool {
	any := false
	for _, p := range r.players {
		hand := r.hands[p.ID]
		if hand.IsEliminated || hand.IsInactive || !p.Connected() {
			continue
		}
		any = true
		if !hand.HasPlayedThisTurn {
			return false
		}
	}
	return any
}

// resetRoundLocked opens a new round: the next play will set the
// required type again, and there is nothing left to challenge.
func (r *Room) resetRoundLocked() {
	r.round.number++
	r.round.currentCardType = ""
	r.round.playedCards = nil
	r.round.lastPlayedCard = nil
	r.round.lastDeclaredType = ""
	r.round.lastPlayerID = ""
	for _, h := range r.hands {
		h.HasPlayedThisTurn = false
	}
}

// PlayCard processes the current player's play. The declared type is
// required for wild cards and ignored for natural cards, whose rank is
// their declaration.
func (r *Room) PlayCard(participantID, cardID string, declared deck.Rank) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.participantLocked(participantID)
	if p == nil || r.closed {
		return ErrRoomUnavailable
	}
	if p.Role != RolePlayer {
		return ErrNotAPlayer
	}
	if r.status != StatusPlaying || r.round.phase != PhasePlaying {
		return ErrGameNotInProgress
	}

	_, idx := r.playerLocked(participantID)
	if idx != r.round.currentIndex {
		return ErrNotYourTurn
	}

	hand := r.hands[participantID]
	if hand.IsEliminated {
		return ErrEliminated
	}
	if hand.HasPlayedThisTurn {
		return ErrAlreadyPlayed
	}

	var card deck.Card
	found := false
	for _, c := range hand.Cards {
		if c.ID == cardID {
			card, found = c, true
			break
		}
	}
	if !found {
		return ErrCardNotInHand
	}

	if card.Wild() {
		if declared == "" {
			return ErrDeclarationRequired
		}
		if !declared.Declarable() {
			return ErrInvalidDeclaration
		}
		// Mid-round, a wild always announces the table type; echoing a
		// differing declaration would reveal the card as a wild.
		if r.round.currentCardType != "" {
			declared = r.round.currentCardType
		}
	} else {
		declared = card.Rank
	}

	if !deck.IsLegalPlay(card, r.round.currentCardType) {
		return ErrIllegalPlay
	}

	// All checks passed, mutate.
	r.cancelTurnTimerLocked()

	if r.round.currentCardType == "" {
		r.round.currentCardType = declared
	}
	hand.removeCard(cardID)
	hand.HasPlayedThisTurn = true
	r.round.playedCards = append(r.round.playedCards, card)
	played := card
	r.round.lastPlayedCard = &played
	r.round.lastDeclaredType = declared
	r.round.lastPlayerID = participantID

	r.logger.Debug("card played",
		zap.String("participant_id", participantID),
		zap.String("declared", string(declared)),
	)

	r.bc.SendTo(p.transport, protocol.EventCardPlayed, protocol.CardPlayedPayload{
		Card:         card,
		DeclaredType: declared,
		HandSize:     len(hand.Cards),
	})
	r.bc.ToOthers(r.rosterLocked(), participantID, protocol.EventOpponentPlayedCard, protocol.OpponentPlayedPayload{
		PlayerID:     participantID,
		DeclaredType: declared,
		HandSize:     len(hand.Cards),
		PlayedCount:  len(r.round.playedCards),
	})

	if len(hand.Cards) == 0 {
		r.resolveWinLocked(p)
		return nil
	}

	r.advanceTurnLocked()
	return nil
}

// Challenge accuses the player who made the round's most recent play of
// lying about its declared type. Resolution is synchronous: the card is
// revealed, exactly one side is punished, and play resumes (or the game
// ends) within this call.
func (r *Room) Challenge(challengerID, accusedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenger := r.participantLocked(challengerID)
	if challenger == nil || r.closed {
		return ErrRoomUnavailable
	}
	if challenger.Role != RolePlayer {
		return ErrNotAPlayer
	}
	if r.status != StatusPlaying || r.round.phase != PhasePlaying {
		return ErrGameNotInProgress
	}
	if r.hands[challengerID].IsEliminated {
		return ErrEliminated
	}
	if r.round.lastPlayedCard == nil {
		return ErrNothingToChallenge
	}

	accused, _ := r.playerLocked(accusedID)
	if accused == nil || accusedID != r.round.lastPlayerID || accusedID == challengerID {
		return ErrChallengeUnresolved
	}

	r.round.phase = PhaseChallenge
	r.cancelTurnTimerLocked()

	revealed := *r.round.lastPlayedCard
	declared := r.round.lastDeclaredType
	lied := !deck.IsLegalPlay(revealed, declared)

	punished := challenger
	if lied {
		punished = accused
	}
	riskLevel, eliminated := r.punishLocked(punished.ID)

	r.logger.Info("challenge resolved",
		zap.String("challenger_id", challengerID),
		zap.String("accused_id", accusedID),
		zap.Bool("lied", lied),
		zap.String("punished_id", punished.ID),
		zap.Bool("eliminated", eliminated),
	)

	all := r.rosterLocked()
	r.bc.ToRoom(all, protocol.EventPlayerChallenged, protocol.ChallengeAnnouncedPayload{
		ChallengerID: challengerID,
		AccusedID:    accusedID,
	})
	r.bc.ToRoom(all, protocol.EventChallengeResult, protocol.ChallengeResultPayload{
		ChallengerID: challengerID,
		AccusedID:    accusedID,
		RevealedCard: revealed,
		DeclaredType: declared,
		Lied:         lied,
		PunishedID:   punished.ID,
		RiskLevel:    riskLevel,
		Eliminated:   eliminated,
	})

	// The reveal spoils the round; start a fresh one.
	r.resetRoundLocked()
	r.round.phase = PhasePlaying

	if r.eligibleCountLocked() <= 1 {
		r.resolveWinLocked(nil)
		return nil
	}

	r.beginTurnLocked()
	return nil
}

// punishLocked increments the punished player's risk level and rolls
// for elimination: certain at the maximum level, riskLevel-in-six
// below it.
func (r *Room) punishLocked(participantID string) (int, bool) {
	hand := r.hands[participantID]
	if hand.RiskLevel < maxRiskLevel {
		hand.RiskLevel++
	}

	eliminated := hand.RiskLevel >= maxRiskLevel ||
		r.rng.Float64() < float64(hand.RiskLevel)/float64(maxRiskLevel)
	if eliminated {
		hand.IsEliminated = true
	}
	return hand.RiskLevel, eliminated
}

// eligibleCountLocked counts players still in the running: not
// eliminated and not inactive. Connectivity is deliberately excluded
// here; a player inside their grace window is still in the game.
func (r *Room) eligibleCountLocked() int {
	count := 0
	for _, p := range r.players {
		hand := r.hands[p.ID]
		if !hand.IsEliminated && !hand.IsInactive {
			count++
		}
	}
	return count
}

// resolveWinLocked finishes the game. winner may be nil, in which case
// the first still-standing player in turn order is declared winner.
func (r *Room) resolveWinLocked(winner *Participant) {
	if r.round.phase == PhaseFinished {
		return
	}
	r.cancelTurnTimerLocked()

	if winner == nil {
		for _, p := range r.players {
			hand := r.hands[p.ID]
			if !hand.IsEliminated && !hand.IsInactive {
				winner = p
				break
			}
		}
	}

	// Finished is a sub-state of Waiting held until the reset delay.
	r.status = StatusWaiting
	r.round.phase = PhaseFinished

	payload := protocol.GameFinishedPayload{}
	if winner != nil {
		hand := r.hands[winner.ID]
		hand.Score++
		payload = protocol.GameFinishedPayload{
			WinnerID:   winner.ID,
			WinnerName: winner.DisplayName,
			Score:      hand.Score,
		}
		r.logger.Info("game finished", zap.String("winner_id", winner.ID))
	} else {
		r.logger.Info("game finished with no winner")
	}

	r.bc.ToRoom(r.rosterLocked(), protocol.EventGameFinished, payload)
	r.broadcastStateLocked()

	gen := r.generation
	r.resetTimer = time.AfterFunc(r.cfg.NextGameDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || r.generation != gen {
			return
		}
		r.resetForNextGameLocked()
	})
}

// resetForNextGameLocked returns the room to the waiting state with
// cleared hands. Every remaining player must ready up before the next
// game starts.
func (r *Room) resetForNextGameLocked() {
	r.resetTimer = nil
	r.status = StatusWaiting
	r.round = round{phase: PhaseWaiting, direction: 1}
	r.drawPile = nil

	for _, h := range r.hands {
		h.Cards = nil
		h.HasPlayedThisTurn = false
		h.IsReady = false
		h.RiskLevel = 0
		h.IsEliminated = false
		h.IsInactive = false
	}

	r.logger.Info("room reset for next game")
	r.broadcastStateLocked()
}

// Ready marks a player ready for the next game. When every seated
// player is ready (and at least two remain) the next game starts.
func (r *Room) Ready(participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.participantLocked(participantID)
	if p == nil || r.closed {
		return ErrRoomUnavailable
	}
	if p.Role != RolePlayer {
		return ErrNotAPlayer
	}
	if r.status != StatusWaiting || r.round.phase == PhaseFinished {
		return ErrGameInProgress
	}

	hand := r.hands[participantID]
	if hand.IsReady {
		return nil
	}
	hand.IsReady = true

	allReady := len(r.players) >= 2
	for _, pl := range r.players {
		if !r.hands[pl.ID].IsReady {
			allReady = false
			break
		}
	}

	r.bc.ToRoom(r.rosterLocked(), protocol.EventNextGameReady, protocol.ReadyPayload{
		PlayerID: participantID,
		ReadyAll: allReady,
	})

	if allReady {
		r.startGameLocked()
	}
	return nil
}
