// Package lookupd implements a reference-data microservice for lookup
// entities (countries, devices, educational institutions) kept in two
// stores at once: a durable key-value primary (filesystem, S3, MinIO, GCS,
// or Postgres) that is the source of truth, and a Redis search index that
// mirrors it for fast filtered reads.
//
// # Overview
//
// Every mutation runs through a dual-write saga: the index is written
// first, then the primary, with a compensating index rollback if the
// primary write fails. Reads go to the index and fall back to the primary
// when the index cannot answer, so a lagging or unavailable index degrades
// latency, never correctness. Uniqueness is enforced against the primary
// only.
//
//   - Per-entity descriptors drive validation, defaults, and uniqueness
//   - Soft deletes with admin-only visibility and an explicit destroy path
//   - Fire-and-forget success and error events on a RabbitMQ topic exchange
//   - Circuit breaker on the index path, Prometheus metrics throughout
//   - Index rebuild and divergence verification for repair
//
// # Quick Start
//
//	backend := lookupd.NewFilesystemBackend("./data")
//	store := lookupd.NewPrimaryStore(backend, logger, metrics)
//	index := lookupd.NewRedisSearchIndex(redisClient, logger, metrics)
//	coord := lookupd.NewDualWriteCoordinator(store, index, events, logger, metrics)
//	reader := lookupd.NewReadRouter(store, index, logger, metrics)
//
//	countries := lookupd.NewLookupService(lookupd.CountryDescriptor, store, coord, reader, logger)
//	rec, err := countries.Create(ctx, lookupd.Record{"name": "Wakanda"})
//
// The HTTP surface in internal/httpapi exposes the services under
// /lookups/{countries,devices,educationalInstitutions}; cmd/lookupd wires
// configuration, storage, Redis, and the event bus together.
package lookupd
