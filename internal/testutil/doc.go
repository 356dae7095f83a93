// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by tests that drive a real container
// engine.
package testutil
