// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the signed event model that all repository
// provenance in nostrforge is built on: the wire struct, the canonical
// serialization that feeds the content-addressed id, BIP-340 schnorr
// signing and verification, query filters, and typed views over the
// event kinds this platform understands (repository announcements,
// ownership transfers, deletions, relay lists).
//
// Raw tag arrays never leave this package's parsing functions:
// downstream logic operates on the validated typed records built here
// at the ingestion boundary.
package event
