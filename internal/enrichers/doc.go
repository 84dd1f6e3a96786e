// Package enrichers contains the enrichment pipeline stages. Each stage
// implements driven.Enricher, declares which items it applies to, and
// returns a metadata patch. Stages are independent: a failing stage
// leaves its outputs empty and the pipeline continues.
//
// Stage order is fixed by the wiring in the CLI:
//
//	probe -> thumbnail -> pdf -> textfile -> ocr -> video -> annotate
//
// followed by the searchable-text rebuild and embedding refresh that the
// queue itself performs.
package enrichers
