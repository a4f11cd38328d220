// Package harness runs akl scenario files: a document, optional engine
// settings and assertions on the rendered output and final knowledge base.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: colcombet_greeting
//	description: "A scoped lookup through a synonym"
//	config:
//	  max_passes: 5
//	  rebind: overwrite
//	  lookups: placeholder
//	document:
//	  - create: Thomas Colcombet
//	  - synonym: {name: Thomas Colcombet, alias: Colcombet}
//	  - set: {name: Colcombet, key: salut, value: Bonjour}
//	  - scope:
//	      ref: Colcombet
//	      body:
//	        - get: {key: salut}
//	assertions:
//	  - type: output_equals
//	    expect: "Bonjour"
//	  - type: resolve
//	    name: Colcombet
//	    entity: 1
//
// A scenario may name a document file with source: instead of embedding
// it; the path is resolved against the scenario's directory.
//
// # Assertion Types
//
//   - output_equals: rendered output equals expect exactly
//   - output_contains: rendered output contains text
//   - resolve: name resolves to entity, or is missing
//   - attribute: name's key equals value, or is missing
//   - entities_with: ListEntitiesWithAttribute(key) equals entities
//   - passes: the run took exactly count passes
//   - converged: the run's convergence flag equals value
//   - fragment_error: a placeholder for name carries code
//   - run_error: the run failed with code
//
// A run error fails the scenario unless a run_error assertion expects it.
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run id (run_id, or "scenario-<name>")
// so rendered output and pass fingerprints are reproducible for golden
// comparison.
package harness
