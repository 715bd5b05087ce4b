// Package racetest stress-executes a target under controlled thread
// contention and infers whether it races.
//
// # Quick Start
//
//	h, err := racetest.New(racetest.Options{
//		Threads:    20,
//		Iterations: 200,
//		Timeout:    5 * time.Second,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	counter := racetest.Track(h, "counter", 0)
//
//	res, err := h.Run(ctx, func() (any, error) {
//		counter.Set(counter.Get() + 1)
//		return nil, nil
//	})
//	if res.RaceDetected {
//		// ...
//	}
//
// # How It Works
//
// Run spawns Threads worker goroutines, each locked to its own OS
// thread so scheduling stays preemptive. All workers block on a start
// barrier and are released together, maximizing interleaving at the
// start. Each worker then calls the target Iterations times, recording
// one Outcome per call. After the workers join, the harness replays
// the same iteration count single-threaded as a baseline, merges the
// per-thread access buffers into a frozen log, scans it for conflicts,
// and evaluates the verdict rules in priority order:
//
//  1. An error seen concurrently but absent from the baseline.
//  2. Divergent result fingerprints, when the target is declared pure.
//  3. At least one access conflict.
//  4. Timing variance beyond VarianceFactor times the baseline
//     variance, recorded as a contention warning rather than a race.
//
// The verdict is a pure function of the collected outcomes and
// conflicts. The interleaving that produced them is not deterministic:
// an unsafe target is detected with high probability per run, not with
// certainty.
//
// # Timeouts
//
// A wall-clock Timeout bounds the whole run. When it expires the
// harness raises a cancellation flag and returns without joining
// workers that are stuck inside the target; those continue as daemons.
// A timed-out harness must not be reused, since its abandoned workers
// may still hold their buffers; Run returns an error on subsequent
// calls. Create a fresh harness (and fresh tracked state) instead.
package racetest
