/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ingestctl

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"

	"github.com/classicminidiy/ultralog/chancache"
	"github.com/classicminidiy/ultralog/corelog"
	"github.com/classicminidiy/ultralog/hostcfg"
	"github.com/classicminidiy/ultralog/logmodel"
	"github.com/classicminidiy/ultralog/parsers"
)

// Orchestrator is the single-owner load queue of spec.md §4.8: it
// accepts LoadRequests, runs them on a bounded pool of background
// workers, deduplicates by content fingerprint, and propagates
// cancellation.
type Orchestrator struct {
	cfg     hostcfg.Config
	baseOpts parsers.ParseOptions
	log     *corelog.Logger

	limiter *rate.Limiter

	mu            sync.Mutex
	byFingerprint map[string]Handle
	states        map[Handle]*loadingState
	reqOpts       map[Handle]requestOpts
	nextHandle    uint64

	queue     chan *loadingState
	completed *chancache.Cache[Handle]

	closeOnce sync.Once
}

// New builds an Orchestrator and starts cfg.WorkerCount background
// workers. baseOpts supplies the name-normalizer inputs every parse
// uses; its Fingerprint field is overwritten per request.
func New(cfg hostcfg.Config, baseOpts parsers.ParseOptions, log *corelog.Logger) *Orchestrator {
	if log == nil {
		log = corelog.Discard
	}
	o := &Orchestrator{
		cfg:           cfg,
		baseOpts:      baseOpts,
		log:           log,
		limiter:       rate.NewLimiter(rate.Limit(cfg.MaxConcurrentLoads), cfg.MaxConcurrentLoads),
		byFingerprint: make(map[string]Handle),
		states:        make(map[Handle]*loadingState),
		queue:         make(chan *loadingState, cfg.WorkerCount*4),
		completed:     chancache.New[Handle](256),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		go o.worker()
	}
	return o
}

// Completed delivers a handle each time a load reaches a terminal
// phase (ready, failed, or cancelled), for hosts that prefer
// notification over polling State.
func (o *Orchestrator) Completed() <-chan Handle { return o.completed.Out }

// Submit enqueues path for loading. If an existing, still-relevant
// load shares path's content fingerprint, Submit returns that load's
// handle wrapped in *DuplicateLoad instead of starting a new one, per
// spec.md §4.8.
func (o *Orchestrator) Submit(path, extHint string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	if o.cfg.MaxFileSize > 0 && fi.Size() > o.cfg.MaxFileSize {
		f.Close()
		return 0, ErrFileTooLarge
	}
	fp, err := logmodel.Fingerprint(f)
	if err != nil {
		f.Close()
		return 0, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return 0, err
	}
	f.Close()

	if extHint == "" {
		extHint = filepath.Ext(path)
	}

	o.mu.Lock()
	if existing, ok := o.byFingerprint[fp]; ok {
		if st, ok := o.states[existing]; ok {
			phase := st.view().Phase
			if phase == PhasePending || phase == PhaseRunning || phase == PhaseReady {
				o.mu.Unlock()
				return existing, &DuplicateLoad{Existing: existing}
			}
		}
	}
	o.nextHandle++
	h := Handle(o.nextHandle)
	st := &loadingState{handle: h, path: path, phase: PhasePending}
	o.states[h] = st
	o.byFingerprint[fp] = h
	o.mu.Unlock()

	opts := o.baseOpts
	opts.Fingerprint = fp
	o.enqueueOpts(h, opts, extHint)
	o.queue <- st
	return h, nil
}

// enqueueOpts stashes the per-request parse options the worker needs;
// kept in a side map rather than on loadingState so loadingState stays
// free of parser-package types.
func (o *Orchestrator) enqueueOpts(h Handle, opts parsers.ParseOptions, extHint string) {
	o.mu.Lock()
	if o.reqOpts == nil {
		o.reqOpts = make(map[Handle]requestOpts)
	}
	o.reqOpts[h] = requestOpts{opts: opts, extHint: extHint}
	o.mu.Unlock()
}

type requestOpts struct {
	opts    parsers.ParseOptions
	extHint string
}

// State returns an immutable snapshot of a submitted load.
func (o *Orchestrator) State(h Handle) (LoadingStateView, error) {
	o.mu.Lock()
	st, ok := o.states[h]
	o.mu.Unlock()
	if !ok {
		return LoadingStateView{}, ErrUnknownHandle
	}
	return st.view(), nil
}

// Cancel requests that a pending or running load stop. Observing
// cancellation is non-blocking; a load already in a terminal phase is
// unaffected.
func (o *Orchestrator) Cancel(h Handle) error {
	o.mu.Lock()
	st, ok := o.states[h]
	o.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}
	if cancel := st.requestCancel(); cancel != nil {
		cancel()
	}
	return nil
}

func (o *Orchestrator) worker() {
	for st := range o.queue {
		o.run(st)
	}
}

func (o *Orchestrator) run(st *loadingState) {
	o.mu.Lock()
	ro := o.reqOpts[st.handle]
	delete(o.reqOpts, st.handle)
	o.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	st.setRunning(cancel)
	defer cancel()

	if st.view().Phase != PhaseRunning {
		// Cancelled while still pending in the queue.
		o.notifyDone(st.handle)
		return
	}

	if err := o.limiter.Wait(ctx); err != nil {
		st.setFailed(err)
		o.notifyDone(st.handle)
		return
	}

	f, err := os.Open(st.path)
	if err != nil {
		st.setFailed(err)
		o.notifyDone(st.handle)
		return
	}
	log, err := parsers.DetectAndParse(ctx, f, ro.extHint, ro.opts)
	f.Close()

	if ctx.Err() != nil {
		// Already transitioned to Cancelled by Cancel(); any partial
		// result is discarded by simply not calling setReady.
		o.notifyDone(st.handle)
		return
	}
	if err != nil {
		st.setFailed(err)
		o.notifyDone(st.handle)
		return
	}
	st.setReady(log)
	o.notifyDone(st.handle)
}

// notifyDone publishes h on the Completed channel. The channel is
// backed by a bounded buffer (chancache), so this only blocks the
// worker if the host has let 256 completions pile up unread; a host
// that prefers not to drain Completed at all can just poll State
// instead, per spec.md §4.8's "the host polls or is notified on
// completion."
func (o *Orchestrator) notifyDone(h Handle) {
	o.completed.In <- h
}

// Shutdown closes the work queue, so the workers exit once it has
// drained; the Completed channel is not closed. Already-running loads
// finish or observe cancellation on their own; Shutdown does not wait
// for them.
func (o *Orchestrator) Shutdown() {
	o.closeOnce.Do(func() {
		close(o.queue)
	})
}
