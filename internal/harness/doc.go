// Package harness runs differential scenarios: one module compiled under
// every tier limit and executed in the reference VM, with the observable
// outcomes required to match.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: collect_counted_for
//	description: "for i in range(n) collecting i"
//	module: collect.json
//	entry: collect
//	args: [5]
//	config:
//	  width: 32
//	  hint_policy: trust
//	feedback: collect.feedback.json
//	max_steps: 100000
//	assertions:
//	  - type: result
//	    value: "[0, 1, 2, 3, 4]"
//	  - type: construct
//	    function: collect
//	    pattern: counted_for
//	    tier: guarded
//	  - type: deopts
//	    count: 0
//
// Module and feedback paths are relative to the scenario file.
//
// # Equivalence
//
// The dynamic limit is the reference. For the static and guarded limits
// the printed output, the result and the uncaught exception must equal
// the reference. A trap under any limit is a failure. Runs that exhaust
// the step budget are excluded from the comparison, since specialized
// code may take fewer steps.
//
// # Assertion Types
//
//   - output: printed lines equal Lines
//   - result: repr of the entry's return value equals Value
//   - exception: uncaught exception has Class and, if given, Message
//   - deopts: number of deopts under Limit (default static) equals Count
//   - construct: under Limit, Function has a Pattern construct at Tier
//   - compile_error: compilation fails with error Code
//
// Value assertions are checked against the static outcome, which is
// equal to every other outcome once equivalence holds.
package harness
