package game

import "errors"

// Domain rejections. Every one of these surfaces to the acting
// participant only, as a single ERROR event; none of them mutates room
// state. ErrRoomUnavailable deliberately covers both a missing room
// and a non-member sender so outsiders cannot probe for room codes.
var (
	ErrRoomUnavailable     = errors.New("room unavailable")
	ErrWrongPassword       = errors.New("incorrect room password")
	ErrNotAPlayer          = errors.New("spectators cannot perform this action")
	ErrNotOwner            = errors.New("only the room owner can do that")
	ErrGameNotInProgress   = errors.New("no game in progress")
	ErrGameInProgress      = errors.New("a game is already in progress")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrAlreadyPlayed       = errors.New("you already played this round")
	ErrCardNotInHand       = errors.New("card is not in your hand")
	ErrDeclarationRequired = errors.New("a wild card requires a declared type")
	ErrInvalidDeclaration  = errors.New("declared type must be King, Queen or Jack")
	ErrIllegalPlay         = errors.New("card does not match the required type")
	ErrNothingToChallenge  = errors.New("no card has been played this round")
	ErrChallengeUnresolved = errors.New("challenge target cannot be resolved")
	ErrEliminated          = errors.New("eliminated players cannot act")
	ErrEmptyChatMessage    = errors.New("chat message is empty")
)
