// Package harness runs compilation scenarios against an in-memory project.
//
// A scenario names an entry file, the exports to compile, and the project
// files as a map of absolute paths to contents. The harness compiles the
// entry with a fresh Run and checks the output against the scenario's
// assertions.
//
// # Scenario Format
//
//	name: header_extraction
//	description: "Extracts the header class and shakes unused code"
//	entry: /src/a.js
//	only: [header]
//	mode: sync
//	files:
//	  /src/a.js: |
//	    import { css } from "@bakecss/core";
//	    const size = 3;
//	    export const header = css`font-size: ${size}em;`;
//	assertions:
//	  - type: css_contains
//	    value: "font-size: 3em;"
//	  - type: shaken_not_contains
//	    value: "expensive"
//
// # Assertion Types
//
//   - css_contains: the extracted stylesheet contains value
//   - code_contains / code_not_contains: the rewritten entry contains value
//   - shaken_contains / shaken_not_contains: the shaken ES module of file
//     (the entry when file is empty) contains value
//   - rule_count: exactly count rules were extracted
//   - dependency: file is among the compile dependencies
//   - error_code: compilation failed with the given build error code
//   - exports: file exports exactly names, wildcards expanded
//   - idempotent: a second compile yields the same output without parsing
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run identifier and no persistent store,
// so the output snapshot compared by RunWithGolden is identical across
// runs.
package harness
