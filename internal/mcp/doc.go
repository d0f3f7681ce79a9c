// ABOUTME: JSON-RPC stdio client for tool-provider subprocesses
// ABOUTME: One Session owns one subprocess: handshake, tool discovery, framed calls

// Package mcp implements the client side of the framed request/response
// protocol spoken by tool-provider subprocesses. A Session pairs a launch
// spec with a live process and exposes ListTools and Invoke. Retry policy
// lives one layer up, in the session pool and execution engine.
package mcp
