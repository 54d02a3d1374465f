package lobby

import (
	"context"
	"errors"
	"net/http"

	"rimcity-link/internal/challenge"
	"rimcity-link/internal/game"
	"rimcity-link/internal/ledger"
)

var (
	ErrNotYourTurn       = errors.New("not_your_turn")
	ErrChallengeClosed   = errors.New("challenge_closed")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNotParticipant    = errors.New("not_participant")
	ErrNoWager           = errors.New("no_wager")
	ErrNotReady          = errors.New("not_ready")
	ErrMatchIncomplete   = errors.New("match_incomplete")
	ErrNoEngine          = errors.New("match_engine_unavailable")
)

// MapError translates facade errors into an HTTP status and a stable code
// shared by every transport.
func MapError(err error) (int, string) {
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		return http.StatusNotFound, "challenge_not_found"
	case errors.Is(err, ErrNotParticipant):
		return http.StatusForbidden, "not_participant"
	case errors.Is(err, ErrNotYourTurn):
		return http.StatusConflict, "not_your_turn"
	case errors.Is(err, ErrChallengeClosed):
		return http.StatusConflict, "challenge_closed"
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, ErrNoWager):
		return http.StatusConflict, "no_wager"
	case errors.Is(err, ErrNotReady):
		return http.StatusConflict, "not_ready"
	case errors.Is(err, challenge.ErrMissingGlobalID):
		return http.StatusBadRequest, "missing_global_id"
	case errors.Is(err, challenge.ErrNoClient), errors.Is(err, ledger.ErrNoClient):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, ErrNoEngine):
		return http.StatusServiceUnavailable, "match_engine_unavailable"
	case errors.Is(err, ErrMatchIncomplete), errors.Is(err, game.ErrMatchAborted):
		return http.StatusConflict, "match_incomplete"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
