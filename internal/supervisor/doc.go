// SPDX-License-Identifier: MPL-2.0

// Package supervisor runs containers in the foreground and merges their
// output onto one console.
//
// Each line is written as "LABEL | stream | text" with the label padded to
// the widest label. Every stream has its own reader goroutine and a single
// writer goroutine owns the console, so lines are never torn and stay in
// order within a stream.
//
// The first interrupt starts an ordered shutdown: units are stopped last
// first, each exactly once, then every child is waited for and the output
// is drained. Further interrupts are ignored. A unit that exits on its own
// is logged and does not bring the others down.
package supervisor
