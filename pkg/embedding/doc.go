// Package embedding turns text into fixed-size unit vectors.
//
// A Model is the raw provider (OpenAI, a local model, a deterministic fake).
// It is expensive to construct, so it is held in a Shared handle that loads
// it once and hands the same instance to every caller. Service wraps the
// handle and enforces the contract the rest of the system relies on:
//
//   - blank input is rejected with ErrEmptyText
//   - long input is truncated to a rune budget instead of failing
//   - output has exactly vector.Dim components and unit L2 norm
//   - model errors, panics and timeouts surface as *GenerationError
//
// Service holds no mutable state between calls and is safe for concurrent use.
package embedding
