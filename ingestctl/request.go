/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package ingestctl implements the ingestion orchestrator of spec.md
// §4.8: a single-owner load queue, background parsing workers,
// fingerprint-based dedup, and cancellation with partial-result
// discard.
package ingestctl

import (
	"errors"
	"fmt"
	"sync"

	"github.com/classicminidiy/ultralog/logmodel"
)

var (
	ErrUnknownHandle = errors.New("unknown load handle")
	ErrFileTooLarge  = errors.New("file exceeds the configured size ceiling")
)

// Handle identifies one submitted load request for its entire
// lifetime, stable across Submit, Cancel, and State queries.
type Handle uint64

// Phase is a LoadingState's lifecycle stage, per spec.md §4.8.
type Phase int

const (
	PhasePending Phase = iota
	PhaseRunning
	PhaseReady
	PhaseFailed
	PhaseCancelled
	PhaseDuplicate
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseRunning:
		return "running"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	case PhaseDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// DuplicateLoad is returned by Submit when the file's content
// fingerprint matches an already open (non-terminal-failed) load, per
// spec.md §4.8.
type DuplicateLoad struct {
	Existing Handle
}

func (e *DuplicateLoad) Error() string {
	return fmt.Sprintf("duplicate of load %d", e.Existing)
}

// LoadingStateView is an immutable snapshot of a load's state, safe to
// hand to the host across goroutines.
type LoadingStateView struct {
	Handle      Handle
	Path        string
	Phase       Phase
	Log         *logmodel.Log
	Err         error
	DuplicateOf Handle
}

// loadingState is the mutable, internally-synchronized record the
// orchestrator tracks per submitted request.
type loadingState struct {
	mu     sync.Mutex
	handle Handle
	path   string
	phase  Phase

	log         *logmodel.Log
	err         error
	duplicateOf Handle

	cancel func()
}

func (s *loadingState) view() LoadingStateView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoadingStateView{
		Handle:      s.handle,
		Path:        s.path,
		Phase:       s.phase,
		Log:         s.log,
		Err:         s.err,
		DuplicateOf: s.duplicateOf,
	}
}

func (s *loadingState) setRunning(cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePending {
		return
	}
	s.phase = PhaseRunning
	s.cancel = cancel
}

func (s *loadingState) setReady(log *logmodel.Log) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRunning {
		// A cancellation raced ahead of the parse finishing; discard
		// the partial result per spec.md §4.8/§5.
		return
	}
	s.phase = PhaseReady
	s.log = log
}

func (s *loadingState) setFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRunning && s.phase != PhasePending {
		return
	}
	s.phase = PhaseFailed
	s.err = err
}

// requestCancel transitions a pending or running load to cancelled at
// most once and returns the parser cancel func to invoke, if any.
func (s *loadingState) requestCancel() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseReady || s.phase == PhaseFailed || s.phase == PhaseCancelled || s.phase == PhaseDuplicate {
		return nil
	}
	prevPhase := s.phase
	s.phase = PhaseCancelled
	if prevPhase == PhaseRunning && s.cancel != nil {
		return s.cancel
	}
	return nil
}
