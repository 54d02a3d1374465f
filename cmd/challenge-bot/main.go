package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rimcity-link/internal/app/participant"
	"rimcity-link/internal/challenge"
	"rimcity-link/internal/config"
	"rimcity-link/internal/lobby"
	"rimcity-link/internal/logging"
	"rimcity-link/internal/wager"

	"github.com/rs/zerolog/log"
)

type actionKind int

const (
	actNone actionKind = iota
	actAccept
	actAcceptWager
	actCounter
	actLaunch
)

type action struct {
	Kind  actionKind
	Offer wager.Offer
}

// maxRounds is how many wager revisions the bot haggles before taking the
// offer on the table.
const maxRounds = 3

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	botCfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}
	storeCfg, err := config.LoadStore()
	if err != nil {
		log.Fatal().Err(err).Msg("load store config failed")
	}
	challengeCfg, err := config.LoadChallenge()
	if err != nil {
		log.Fatal().Err(err).Msg("load challenge config failed")
	}

	p, err := participant.New(participant.Options{
		Store:     storeCfg,
		Challenge: challengeCfg,
		Session:   challenge.Session{GlobalID: botCfg.PlayerID, Name: botCfg.Name, Cash: botCfg.Cash, Rep: botCfg.Rep},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("participant init failed")
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() { _ = p.Presence.Run(ctx) }()

	poll := time.Duration(botCfg.PollMS) * time.Millisecond
	if poll <= 0 {
		poll = 2 * time.Second
	}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	launched := map[string]bool{}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	log.Info().Str("player_id", botCfg.PlayerID).Dur("poll", poll).Msg("challenge bot running")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, ch := range p.Lobby.Incoming(ctx) {
			if launched[ch.ID] {
				continue
			}
			act := decide(rnd, ch, botCfg.PlayerID, botCfg.CounterPercent)
			if apply(ctx, p.Lobby, ch.ID, act) && act.Kind == actLaunch {
				launched[ch.ID] = true
			}
		}
	}
}

func decide(rnd *rand.Rand, ch *challenge.Challenge, me string, counterPercent int) action {
	switch ch.Status {
	case challenge.StatusAccepted:
		return action{Kind: actLaunch}
	case challenge.StatusPending, challenge.StatusNegotiating:
	default:
		return action{}
	}
	if ch.Wager == nil {
		return action{Kind: actAccept}
	}
	if !challenge.IsMyTurnToRespond(ch, me) {
		return action{}
	}
	if ch.Wager.Revision >= maxRounds || rnd.Intn(3) == 0 {
		return action{Kind: actAcceptWager}
	}
	if counterPercent <= 0 || counterPercent > 100 {
		counterPercent = 50
	}
	return action{Kind: actCounter, Offer: wager.Offer{
		Cash: ch.Wager.Cash * int64(counterPercent) / 100,
		Rep:  ch.Wager.Rep * int64(counterPercent) / 100,
	}}
}

// apply performs act and reports whether it went through.
func apply(ctx context.Context, svc *lobby.Service, id string, act action) bool {
	var err error
	switch act.Kind {
	case actNone:
		return false
	case actAccept:
		_, err = svc.Accept(ctx, id)
	case actAcceptWager:
		_, err = svc.AcceptWager(ctx, id)
	case actCounter:
		_, err = svc.SubmitCounterOffer(ctx, id, act.Offer)
	case actLaunch:
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		outcome, _ := svc.WaitForReady(waitCtx, id)
		cancel()
		if outcome != lobby.OutcomeReady {
			log.Info().Str("challenge_id", id).Str("outcome", string(outcome)).Msg("lobby did not fill")
			return outcome != lobby.OutcomeTimeout
		}
		report, launchErr := svc.LaunchMatch(ctx, id)
		if launchErr == nil {
			log.Info().Str("challenge_id", id).Bool("won", report.IWon).Int("team_a", report.Score.TeamA).Int("team_b", report.Score.TeamB).Msg("match finished")
		}
		err = launchErr
	}
	if err != nil {
		log.Warn().Err(err).Str("challenge_id", id).Msg("bot action failed")
		return false
	}
	return true
}
