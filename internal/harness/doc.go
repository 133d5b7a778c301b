// Package harness runs learning scenarios as executable contract tests.
//
// A scenario names a target machine, the learner's policies and an
// equivalence procedure, then asserts on the outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: ends_ab_maler_pnueli
//	description: "What this scenario validates"
//	machine: ../machines/learn.cue
//	target: ends_ab
//	learner:
//	  closing: first          # first, random, shortest, lexmin
//	  handler: maler-pnueli   # classic, maler-pnueli, shahbaz, rivest-schapire
//	  seed: 0
//	  max_rounds: 0
//	  cache: false
//	  workers: 1
//	equivalence:
//	  type: exact             # exact, random, scripted
//	assertions:
//	  - type: states
//	    count: 3
//	  - type: output
//	    input: [b, a, b]
//	    expect: "1"
//
// # Assertion Types
//
//   - states: the hypothesis has exactly count states
//   - rounds, max_rounds: the number of hypotheses built
//   - max_queries: distinct membership queries asked by the table
//   - equivalent: no word separates the hypothesis from the target
//   - output: the hypothesis answers input with expect
//   - error: learning failed with the learner error code
//
// # Deterministic Testing
//
// Run executes every scenario against a fresh in-memory run log with a
// stepping clock and sequential run ids, so traces compare byte for byte
// with the golden files under testdata/golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/turnstile_classic.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        fmt.Println(e)
//	    }
//	}
package harness
