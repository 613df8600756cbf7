package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	persistlog "voxelvillage.ai/internal/persistence/log"
	"voxelvillage.ai/internal/persistence/snapshot"
	"voxelvillage.ai/internal/sim/tuning"
	"voxelvillage.ai/internal/sim/world"
	"voxelvillage.ai/internal/sim/worldmap"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst to summarize (optional)")
		worldDir   = flag.String("world_dir", "", "world data dir containing ticks/ticks-*.jsonl.zst (optional)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning the logged world was started with")
		seed       = flag.Int64("seed", 0, "seed override used when the world was started (0: tuning seed)")
		toTick     = flag.Uint64("to_tick", 0, "stop verifying after tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" && *worldDir == "" {
		fmt.Fprintln(os.Stderr, "need -snapshot and/or -world_dir")
		os.Exit(2)
	}

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		printSummary(os.Stdout, snap)
	}

	if *worldDir == "" {
		return
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	res, err := verifyTicks(*worldDir, tune, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks=[%d,%d] actions=%d greetings=%d resumes=%d\n",
		res.Checked, res.First, res.Last, res.Actions, res.Greetings, res.Resumes)
}

func printSummary(out io.Writer, snap snapshot.SnapshotV1) {
	fmt.Fprintf(out, "snapshot v%d world=%s tick=%d frame=%d seed=%d regions=%d actors=%d entities=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Header.Frame, snap.Seed,
		len(snap.Regions), len(snap.Actors), len(snap.Entities))

	occ := map[string]int{}
	for _, a := range snap.Actors {
		occ[a.Occupation]++
	}
	for _, k := range sortedKeys(occ) {
		fmt.Fprintf(out, "  occupation %-14s %d\n", k, occ[k])
	}

	kinds := map[string]int{}
	for _, r := range snap.Regions {
		for _, k := range r.Kinds {
			kinds[worldmap.TileKind(k).String()]++
		}
	}
	for _, k := range sortedKeys(kinds) {
		fmt.Fprintf(out, "  tile %-20s %d\n", k, kinds[k])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type replayResult struct {
	Checked   uint64
	First     uint64
	Last      uint64
	Actions   int
	Greetings int
	Resumes   int
}

// discardTicks makes Step compute digests without writing anything.
type discardTicks struct{}

func (discardTicks) WriteTick(world.TickLogEntry) error { return nil }

var errStop = errors.New("stop")

// verifyTicks rebuilds the world from tune at tick 0 and steps it through the
// logged actions, comparing each frame's digest with the logged one. Entries
// marked as the first after a server restart reload the resume point first.
func verifyTicks(worldDir string, tune tuning.Tuning, toTick uint64) (replayResult, error) {
	var res replayResult
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := world.New(world.ConfigFromTuning(tune), logger)
	if err != nil {
		return res, err
	}
	if _, err := w.Populate(tune.Population); err != nil {
		return res, err
	}
	w.SetTickLogger(discardTicks{})

	err = persistlog.ReadTicks(worldDir, func(e world.TickLogEntry) error {
		if toTick != 0 && e.Tick > toTick {
			return errStop
		}
		if e.Resume != "" {
			snap, err := persistlog.ReadResumePoint(worldDir, e.Resume)
			if err != nil {
				return fmt.Errorf("resume point at tick %d: %w", e.Tick, err)
			}
			cfg := world.ConfigFromTuning(tune)
			cfg.ID = snap.Header.WorldID
			if w, err = world.Resume(cfg, snap, logger); err != nil {
				return fmt.Errorf("resume point at tick %d: %w", e.Tick, err)
			}
			w.SetTickLogger(discardTicks{})
			res.Resumes++
		}
		if e.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), e.Tick)
		}
		got := w.Step(e.Actions)
		if got.Digest != e.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", e.Tick, got.Digest, e.Digest)
		}
		if len(got.Greetings) != len(e.Greetings) {
			return fmt.Errorf("greeting mismatch at tick %d: got=%d want=%d", e.Tick, len(got.Greetings), len(e.Greetings))
		}
		if res.Checked == 0 {
			res.First = e.Tick
		}
		res.Last = e.Tick
		res.Checked++
		res.Actions += len(e.Actions)
		res.Greetings += len(e.Greetings)
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return res, err
	}
	if res.Checked == 0 {
		return res, fmt.Errorf("no tick entries under %s", worldDir)
	}
	return res, nil
}
