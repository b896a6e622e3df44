// Package audit defines the domain types and collaborator interfaces shared by
// the probes, the aggregator, the job orchestrator and the HTTP API.
package audit
