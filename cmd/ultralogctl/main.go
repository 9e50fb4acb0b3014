/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command ultralogctl is a minimal flag-based CLI host exercising the
// core's public contract end to end, for manual smoke-testing outside
// of the GUI host it is ultimately embedded in.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/classicminidiy/ultralog/computed"
	"github.com/classicminidiy/ultralog/corelog"
	"github.com/classicminidiy/ultralog/downsample"
	"github.com/classicminidiy/ultralog/hostcfg"
	"github.com/classicminidiy/ultralog/ingestctl"
	"github.com/classicminidiy/ultralog/parsers"
)

var (
	op         = flag.String("op", "open", "operation to run: open, channels, downsample, library_ops")
	path       = flag.String("path", "", "log file to operate on")
	channel    = flag.String("channel", "", "canonical channel name (downsample)")
	budget     = flag.Int("budget", 0, "downsample point budget; 0 uses the configured default")
	verbose    = flag.Bool("v", false, "log at DEBUG instead of WARN")
	libAction  = flag.String("lib-action", "list", "library_ops sub-action: list, add, remove")
	libName    = flag.String("lib-name", "", "template name (library_ops add)")
	libFormula = flag.String("lib-formula", "", "formula source (library_ops add)")
	libUnit    = flag.String("lib-unit", "", "display unit (library_ops add)")
	libID      = flag.String("lib-id", "", "template id (library_ops remove)")
)

func main() {
	flag.Parse()

	lvl := corelog.WARN
	if *verbose {
		lvl = corelog.DEBUG
	}
	lg := corelog.New(os.Stderr, lvl)

	cfg := hostcfg.Default()
	if err := cfg.Validate(); err != nil {
		lg.Error("invalid configuration: %v", err)
		os.Exit(1)
	}

	var err error
	switch *op {
	case "open":
		err = runOpen(cfg)
	case "channels":
		err = runChannels(cfg)
	case "downsample":
		err = runDownsample(cfg)
	case "library_ops":
		err = runLibraryOps(cfg, lg)
	default:
		fmt.Fprintf(os.Stderr, "unknown -op %q\n", *op)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		lg.Error("%s failed: %v", *op, err)
		os.Exit(1)
	}
}

func openLog(cfg hostcfg.Config) (*parsersResult, error) {
	if *path == "" {
		return nil, fmt.Errorf("-path is required")
	}
	o := ingestctl.New(cfg, parsers.ParseOptions{UserOverrides: cfg.UserOverrides}, nil)
	defer o.Shutdown()

	h, err := o.Submit(*path, "")
	if err != nil {
		return nil, err
	}
	for {
		v, err := o.State(h)
		if err != nil {
			return nil, err
		}
		switch v.Phase {
		case ingestctl.PhaseReady:
			return &parsersResult{view: v}, nil
		case ingestctl.PhaseFailed:
			return nil, v.Err
		case ingestctl.PhaseCancelled:
			return nil, fmt.Errorf("load was cancelled")
		}
	}
}

type parsersResult struct {
	view ingestctl.LoadingStateView
}

func runOpen(cfg hostcfg.Config) error {
	r, err := openLog(cfg)
	if err != nil {
		return err
	}
	log := r.view.Log
	fmt.Printf("records=%d channels=%d fingerprint=%s\n", log.Records(), log.NumChannels(), log.Fingerprint())
	for _, w := range log.Warnings() {
		fmt.Printf("warning: row=%d detail=%s\n", w.RowOrOffset, w.Detail)
	}
	return nil
}

func runChannels(cfg hostcfg.Config) error {
	r, err := openLog(cfg)
	if err != nil {
		return err
	}
	for _, s := range r.view.Log.Summaries() {
		fmt.Printf("%-24s unit=%-8s min=%v max=%v absent=%d\n",
			s.CanonicalName, s.SourceUnit, s.Range.Min, s.Range.Max, s.Range.AbsentCount)
	}
	return nil
}

func runDownsample(cfg hostcfg.Config) error {
	if *channel == "" {
		return fmt.Errorf("-channel is required")
	}
	r, err := openLog(cfg)
	if err != nil {
		return err
	}
	log := r.view.Log
	idx, ok := log.IndexOf(*channel)
	if !ok {
		return fmt.Errorf("unknown channel %q", *channel)
	}
	b := *budget
	if b <= 0 {
		b = cfg.DownsampleBudget
	}
	pts := downsample.LTTB(log.Time(), log.Column(idx), b)
	for _, p := range pts {
		fmt.Printf("%v\t%v\n", p.T, p.V)
	}
	return nil
}

func runLibraryOps(cfg hostcfg.Config, lg *corelog.Logger) error {
	libPath, err := cfg.LibraryPath()
	if err != nil {
		return err
	}
	lib, err := computed.Open(libPath, lg)
	if err != nil {
		return err
	}
	switch *libAction {
	case "list":
		ts, err := lib.List()
		if err != nil {
			return err
		}
		for _, t := range ts {
			fmt.Printf("%s\t%s\t%s\n", t.ID, t.Name, t.Formula)
		}
		return nil
	case "add":
		if *libName == "" || *libFormula == "" {
			return fmt.Errorf("-lib-name and -lib-formula are required for add")
		}
		tpl, err := computed.NewTemplate("", *libName, *libFormula, *libUnit, "")
		if err != nil {
			return err
		}
		id, err := lib.Add(tpl)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	case "remove":
		if *libID == "" {
			return fmt.Errorf("-lib-id is required for remove")
		}
		return lib.Remove(*libID)
	default:
		return fmt.Errorf("unknown -lib-action %q", *libAction)
	}
}
