package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"rimcity-link/internal/challenge"
	"rimcity-link/internal/lobby"
	"rimcity-link/internal/wager"

	"github.com/go-chi/chi/v5"
)

const (
	defaultWaitTimeout = 60 * time.Second
	maxWaitTimeout     = 120 * time.Second
)

type ChallengeHandlers struct {
	svc *lobby.Service
}

func NewChallengeHandlers(svc *lobby.Service) *ChallengeHandlers {
	return &ChallengeHandlers{svc: svc}
}

type sendChallengeRequest struct {
	To    challenge.PlayerRef `json:"to"`
	Meta  map[string]any      `json:"meta"`
	Wager *wager.Offer        `json:"wager"`
}

type readyRequest struct {
	Ready *bool `json:"ready"`
}

type challengeView struct {
	Challenge  *challenge.Challenge `json:"challenge"`
	MyTurn     bool                 `json:"my_turn"`
	OtherReady bool                 `json:"other_ready"`
}

func (h *ChallengeHandlers) view(ch *challenge.Challenge) challengeView {
	return challengeView{Challenge: ch, MyTurn: h.svc.IsMyTurn(ch), OtherReady: h.svc.IsOtherReady(ch)}
}

func (h *ChallengeHandlers) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, h.svc.Session().Ref())
	}
}

// List returns the incoming and/or outgoing mailbox; box selects one.
func (h *ChallengeHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricChallengeRequestsTotal.Add(1)
		box := r.URL.Query().Get("box")
		resp := map[string]any{}
		switch box {
		case "incoming":
			resp["incoming"] = h.svc.Incoming(r.Context())
		case "outgoing":
			resp["outgoing"] = h.svc.Outgoing(r.Context())
		case "":
			resp["incoming"] = h.svc.Incoming(r.Context())
			resp["outgoing"] = h.svc.Outgoing(r.Context())
		default:
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		writeJSON(w, resp)
	}
}

func (h *ChallengeHandlers) Send() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricChallengeRequestsTotal.Add(1)
		var req sendChallengeRequest
		if err := decodeBody(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if req.To.GlobalID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_global_id")
			return
		}
		var offer wager.Offer
		if req.Wager != nil {
			offer = *req.Wager
		}
		ch, err := h.svc.SendChallenge(r.Context(), req.To, req.Meta, offer)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, h.view(ch))
	}
}

func (h *ChallengeHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricChallengeRequestsTotal.Add(1)
		ch, err := h.svc.Challenge(r.Context(), chi.URLParam(r, "challenge_id"))
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, h.view(ch))
	}
}

func (h *ChallengeHandlers) Wager() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricChallengeRequestsTotal.Add(1)
		d, err := h.svc.WagerDetails(r.Context(), chi.URLParam(r, "challenge_id"))
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, d)
	}
}

type transitionFunc func(ctx context.Context, id string) (*challenge.Challenge, error)

func (h *ChallengeHandlers) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricChallengeRequestsTotal.Add(1)
		ch, err := fn(r.Context(), chi.URLParam(r, "challenge_id"))
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, h.view(ch))
	}
}

func (h *ChallengeHandlers) Accept() http.HandlerFunc      { return h.transition(h.svc.Accept) }
func (h *ChallengeHandlers) Decline() http.HandlerFunc     { return h.transition(h.svc.Decline) }
func (h *ChallengeHandlers) Cancel() http.HandlerFunc      { return h.transition(h.svc.Cancel) }
func (h *ChallengeHandlers) AcceptWager() http.HandlerFunc { return h.transition(h.svc.AcceptWager) }

func (h *ChallengeHandlers) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req readyRequest
		if err := decodeBody(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		ready := req.Ready == nil || *req.Ready
		h.transition(func(ctx context.Context, id string) (*challenge.Challenge, error) {
			return h.svc.Ready(ctx, id, ready)
		})(w, r)
	}
}

func (h *ChallengeHandlers) Counter() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var offer wager.Offer
		if err := decodeBody(r, &offer); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if offer.Cash < 0 || offer.Rep < 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_offer")
			return
		}
		h.transition(func(ctx context.Context, id string) (*challenge.Challenge, error) {
			return h.svc.SubmitCounterOffer(ctx, id, offer)
		})(w, r)
	}
}

// Wait long-polls until the lobby resolves. timeout_ms bounds the wait.
func (h *ChallengeHandlers) Wait() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricWaitTotal.Add(1)
		metricWaitActive.Add(1)
		defer metricWaitActive.Add(-1)

		timeout := defaultWaitTimeout
		if v := r.URL.Query().Get("timeout_ms"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 1 {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			timeout = time.Duration(n) * time.Millisecond
		}
		if timeout > maxWaitTimeout {
			timeout = maxWaitTimeout
		}
		id := chi.URLParam(r, "challenge_id")
		if _, err := h.svc.Challenge(r.Context(), id); err != nil {
			writeLobbyError(w, err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		outcome, ch := h.svc.WaitForReady(ctx, id)
		writeJSON(w, map[string]any{"outcome": outcome, "challenge": ch})
	}
}

func (h *ChallengeHandlers) Launch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricChallengeRequestsTotal.Add(1)
		report, err := h.svc.LaunchMatch(r.Context(), chi.URLParam(r, "challenge_id"))
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, report)
	}
}
