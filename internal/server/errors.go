package server

import (
	"errors"

	"github.com/liarsdeck/liars-server-go/internal/game"
)

var errUnknownAction = errors.New("unrecognized action type")

// domainErrors are the rejections whose text is written for clients.
// Anything else is reported generically so internal detail never
// reaches the wire.
var domainErrors = []error{
	game.ErrRoomUnavailable,
	game.ErrWrongPassword,
	game.ErrNotAPlayer,
	game.ErrNotOwner,
	game.ErrGameNotInProgress,
	game.ErrGameInProgress,
	game.ErrNotYourTurn,
	game.ErrAlreadyPlayed,
	game.ErrCardNotInHand,
	game.ErrDeclarationRequired,
	game.ErrInvalidDeclaration,
	game.ErrIllegalPlay,
	game.ErrNothingToChallenge,
	game.ErrChallengeUnresolved,
	game.ErrEliminated,
	game.ErrEmptyChatMessage,
	errUnknownAction,
}

func clientMessage(err error) string {
	for _, domain := range domainErrors {
		if errors.Is(err, domain) {
			return domain.Error()
		}
	}
	return "invalid request"
}
