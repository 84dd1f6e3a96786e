// Package services contains the core engine logic: ingest, search,
// delete, listing, payload classification, the enrichment queue, and the
// startup maintenance tasks (orphan sweep, embedding backfill).
//
// Services implement the driving ports and depend only on domain types
// and driven port interfaces. All infrastructure is injected.
package services
