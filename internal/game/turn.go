package game

// nextEligibleLocked advances currentIndex to the next player who can
// actually take a turn: connected, not eliminated, not inactive. It
// scans at most one full cycle from the seat after the current one and
// returns nil when nobody qualifies, leaving currentIndex untouched in
// that case.
func (r *Room) nextEligibleLocked() *Participant {
	n := len(r.players)
	if n == 0 {
		return nil
	}

	start := r.round.currentIndex
	for step := 1; step <= n; step++ {
		idx := (start + step*r.round.direction) % n
		if idx < 0 {
			idx += n
		}
		p := r.players[idx]
		hand := r.hands[p.ID]
		if !p.Connected() || hand.IsEliminated || hand.IsInactive {
			continue
		}
		r.round.currentIndex = idx
		return p
	}
	return nil
}
