// SPDX-License-Identifier: MPL-2.0

// Package service manages the two-container deployment: Suricata capturing on
// the host network and EveBox serving the events Suricata writes to the
// shared log volume.
//
// Controller starts services in dependency order (Suricata, then EveBox) and
// stops them in reverse. Every start removes a stale container of the same
// name first, and every stop removes the container even when the stop call
// failed, so repeated operations settle on at most one container per name.
// A failure in one service never prevents the controller from attempting the
// other; the errors are joined and returned together.
package service
