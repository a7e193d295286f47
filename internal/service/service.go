// Package service coordinates tuning runs: it owns the persistence layer,
// builds a controller per run, and fans progress events out to subscribers.
package service

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/voicelab/scriptloop/config"
	"github.com/voicelab/scriptloop/internal/adapter/llm"
	"github.com/voicelab/scriptloop/internal/domain"
	"github.com/voicelab/scriptloop/internal/repository"
	"github.com/voicelab/scriptloop/policy"
)

type Service struct {
	store        repository.Store
	generator    llm.Generator
	policyEngine *policy.Engine
	config       *config.Config
	log          *logrus.Entry

	mu     sync.Mutex
	active map[string]*activeRun
}

// activeRun tracks a run whose controller goroutine is still alive.
type activeRun struct {
	cancel      func()
	subscribers map[chan domain.Progress]struct{}
}

func New(store repository.Store, gen llm.Generator, engine *policy.Engine, cfg *config.Config, log *logrus.Entry) *Service {
	return &Service{
		store:        store,
		generator:    gen,
		policyEngine: engine,
		config:       cfg,
		log:          log,
		active:       make(map[string]*activeRun),
	}
}

// Subscribe returns a channel of progress events for runID and a release
// function. The channel closes when the run finishes. Subscribing to a
// finished or unknown run returns a closed channel.
func (s *Service) Subscribe(runID string) (<-chan domain.Progress, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ar, ok := s.active[runID]
	if !ok {
		ch := make(chan domain.Progress)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan domain.Progress, 16)
	ar.subscribers[ch] = struct{}{}
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ar, ok := s.active[runID]; ok {
			if _, live := ar.subscribers[ch]; live {
				delete(ar.subscribers, ch)
				close(ch)
			}
		}
	}
}

// broadcast delivers a progress event to every subscriber of runID. Slow
// subscribers drop events rather than stall the run.
func (s *Service) broadcast(runID string, p domain.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ar, ok := s.active[runID]
	if !ok {
		return
	}
	for ch := range ar.subscribers {
		select {
		case ch <- p:
		default:
		}
	}
}

// release removes the run from the active set and closes its subscriber
// channels.
func (s *Service) release(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ar, ok := s.active[runID]
	if !ok {
		return
	}
	for ch := range ar.subscribers {
		close(ch)
	}
	delete(s.active, runID)
}
