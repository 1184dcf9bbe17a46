// Package harness runs bounds-checking conformance scenarios.
//
// A scenario names a program in a CUE source file, says whether the
// bounds pass is enabled, what the analysis must conclude and how each
// execution of the resulting program must end.
//
// # Scenario Format
//
//	name: vecadd_symbolic_shift
//	description: A[i+1] over symbolic n needs a runtime guard
//	program: ../programs/vecadd.cue
//	entry: vecadd_shift
//	instrument: true
//	build: ok            # ok | unsafe
//	guards: 1
//	decisions:
//	  - {buffer: A, access: load, verdict: undecided}
//	runs:
//	  - name: overflow
//	    params: {n: 16}
//	    fill: {A: ramp, B: ones}
//	    expect: bounds_error
//
// Run outcomes are ok, bounds_error, memory_fault, assertion_failed,
// quota_exceeded and error.
//
// # Deterministic Testing
//
// Each scenario gets a fresh in-memory ledger with sequential run ids and
// a logical clock (testutil.DeterministicClock) numbering its trace
// events, so traces are byte-identical across runs and can be compared
// against golden files with RunWithGolden.
package harness
