// Package services contains the pipeline's business logic: partitioning,
// bounded concurrent fetching, aggregation and deduplication, the two-stage
// join, and the export orchestrator tying them together. Services depend on
// ports only; the connector and the adapters are injected.
package services
