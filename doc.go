// Package envmon is an environmental monitoring platform: a collector that
// ingests temperature and humidity samples from sensor devices over three
// transports (HTTP, NATS request/reply, JetStream), validates them against a
// device directory, and answers spatial aggregation queries; and a fleet
// simulator that drives a configurable population of virtual sensors.
//
// The two binaries live under cmd/envmon-collector and cmd/envmon-fleet.
// Domain packages:
//
//   - device, sample: the directory and reading domain models
//   - storage: devices and samples behind database/sql (SQLite or PostgreSQL)
//   - ingest: the validation gate plus the NATS transports
//   - gateway: the HTTP surface (ingestion, directory CRUD, queries, live feed)
//   - aggregate: count/avg/min/max statistics over the spatial hierarchy
//   - devicecache: the periodically refreshed active-device snapshot
//   - fleet: supervisors, device workers, and the transport senders
package envmon
