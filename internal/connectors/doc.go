// Package connectors holds the clients for remote platforms the exporter
// consumes. Each connector owns its vendor's wire format, authentication and
// paging rules and exposes only domain types to the core.
package connectors
