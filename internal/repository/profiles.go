package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Profile is the display data the engine reads for a participant.
type Profile struct {
	ParticipantID string
	AvatarURL     string
	Wins          int
	Losses        int
}

// ProfileRepository reads participant display data. A nil receiver is
// valid and returns empty profiles, so the server runs without a
// database.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a profile reader over db. db may be nil.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetProfile fetches a participant's display profile. Unknown
// participants and lookup failures both yield an empty profile; the
// engine treats profile data as best-effort decoration.
func (r *ProfileRepository) GetProfile(ctx context.Context, participantID string) Profile {
	empty := Profile{ParticipantID: participantID}
	if r == nil || r.db == nil {
		return empty
	}

	row := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(avatar_url, ''), wins, losses FROM profiles WHERE participant_id = $1`,
		participantID,
	)

	p := Profile{ParticipantID: participantID}
	if err := row.Scan(&p.AvatarURL, &p.Wins, &p.Losses); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.db.logger.Warn("profile lookup failed",
				zap.String("participant_id", participantID),
				zap.Error(err),
			)
		}
		return empty
	}
	return p
}
