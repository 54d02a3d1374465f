package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"rimcity-link/internal/challenge"
	"rimcity-link/internal/notify/platforms"

	"github.com/rs/zerolog/log"
)

var errCircuitOpen = errors.New("circuit_open")

// Source is the slice of the lobby the watcher polls.
type Source interface {
	Incoming(ctx context.Context) []*challenge.Challenge
	Outgoing(ctx context.Context) []*challenge.Challenge
}

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

type Notifier struct {
	cfg      Config
	adapters map[string]platforms.Adapter

	dispatchCh chan pushJob
	done       chan struct{}
	closeOnce  sync.Once

	mu           sync.Mutex
	breakerByKey map[string]breakerState
}

func New(cfg Config) *Notifier {
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	return &Notifier{
		cfg: cfg,
		adapters: map[string]platforms.Adapter{
			"discord": platforms.NewDiscordAdapter(client),
			"feishu":  platforms.NewFeishuAdapter(client),
			"webhook": platforms.NewWebhookAdapter(client),
		},
		dispatchCh:   make(chan pushJob, cfg.DispatchBuffer),
		done:         make(chan struct{}),
		breakerByKey: map[string]breakerState{},
	}
}

func (n *Notifier) Start(ctx context.Context) {
	for i := 0; i < n.cfg.Workers; i++ {
		go n.worker(ctx)
	}
}

func (n *Notifier) Close() {
	n.closeOnce.Do(func() { close(n.done) })
}

// Publish queues ev for every target that allows it. A full queue drops.
func (n *Notifier) Publish(ev Event) {
	for _, t := range n.cfg.Targets {
		if !t.allows(ev.Kind) {
			continue
		}
		n.enqueue(pushJob{Target: t, Event: ev})
	}
}

func (n *Notifier) enqueue(job pushJob) {
	select {
	case n.dispatchCh <- job:
		metricQueuedTotal.Add(1)
		metricQueueLen.Set(int64(len(n.dispatchCh)))
	default:
		metricDroppedTotal.Add(1)
	}
}

// Watch polls src every interval and publishes what changed. The first poll
// only primes the snapshot.
func (n *Notifier) Watch(ctx context.Context, src Source, me string) {
	interval := n.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	poll := func() []*challenge.Challenge {
		return append(src.Incoming(ctx), src.Outgoing(ctx)...)
	}
	_, snap := Diff(nil, poll(), me)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ticker.C:
		}
		var events []Event
		events, snap = Diff(snap, poll(), me)
		for _, ev := range events {
			log.Debug().Str("challenge_id", ev.ChallengeID).Str("kind", string(ev.Kind)).Msg("challenge event")
			n.Publish(ev)
		}
	}
}

func (n *Notifier) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case job := <-n.dispatchCh:
			metricQueueLen.Set(int64(len(n.dispatchCh)))
			n.processJob(ctx, job)
		}
	}
}

func (n *Notifier) processJob(ctx context.Context, job pushJob) {
	adapter := n.adapters[job.Target.Platform]
	if adapter == nil {
		metricDroppedTotal.Add(1)
		return
	}
	key := job.Target.key()
	if err := n.beforeSend(key, time.Now()); err != nil {
		metricCircuitOpenTotal.Add(1)
		n.retryOrDrop(job)
		return
	}
	if err := adapter.Send(ctx, job.Target.Endpoint, job.Target.Secret, Format(job.Event)); err != nil {
		metricFailedTotal.Add(1)
		log.Warn().Err(err).Str("platform", job.Target.Platform).Str("challenge_id", job.Event.ChallengeID).Int("attempt", job.Attempt).Msg("notify send failed")
		n.afterFailure(key, time.Now())
		n.retryOrDrop(job)
		return
	}
	metricSentTotal.Add(1)
	n.afterSuccess(key)
}

func (n *Notifier) retryOrDrop(job pushJob) {
	if job.Attempt >= n.cfg.RetryMax {
		metricRetryDroppedTotal.Add(1)
		return
	}
	job.Attempt++
	metricRetryTotal.Add(1)
	delay := n.cfg.RetryBase * time.Duration(1<<(job.Attempt-1))
	time.AfterFunc(delay, func() {
		select {
		case <-n.done:
		case n.dispatchCh <- job:
			metricQueueLen.Set(int64(len(n.dispatchCh)))
		}
	})
}

func (n *Notifier) beforeSend(key string, now time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	state := n.breakerByKey[key]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (n *Notifier) afterFailure(key string, now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	state := n.breakerByKey[key]
	state.consecutiveFailures++
	if state.consecutiveFailures >= n.cfg.FailureThreshold {
		state.openUntil = now.Add(n.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
	}
	n.breakerByKey[key] = state
}

func (n *Notifier) afterSuccess(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.breakerByKey[key] = breakerState{}
}
