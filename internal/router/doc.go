// Package router turns free text into a resolved tool invocation.
//
// # Overview
//
// The router classifies each inbound message through a fixed chain of
// strategies, stopping at the first confident match:
//
//  1. Explicit command syntax: a leading token maps through a static
//     table to an alias, a tool, and an argument-extraction rule.
//  2. Local shortcuts: commands against purely in-process state (the
//     playback queue) are answered directly, no tool invocation.
//  3. Pattern rules: regex matches against domain keyword sets select a
//     domain and a fixed tool within it.
//  4. Intent fallback: a deterministic rule-based scorer; below its
//     confidence threshold the generic chat tool is chosen.
//
// The strategy set is closed: each variant is a tagged value constructed
// into a RuleSet and passed to NewRouter, never a runtime lookup table
// edited ad hoc.
//
// # Decisions
//
// Route returns one of three decisions:
//
//   - Routed: a RoutedCommand for the execution engine
//   - Local: already handled, Reply carries the text
//   - Reprompt: a required argument is missing and could not be filled
//     from conversation context
//
// # Validation
//
// Once a tool is chosen and its schema is known to the registry, the
// arguments are validated against it. Missing required arguments are
// filled from the conversation context (the last mentioned symbol, the
// source text) before a reprompt is issued.
//
// # Repair
//
// Repair offers at most one re-route per original request: when a result
// looks empty or error-shaped, the query is re-routed to the broader
// search tool. The gateway enforces the once-only bound.
package router
