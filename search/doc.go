// Package search serves paginated listings of hospital records through a
// shared cache.
//
// # Overview
//
// A listing request is described by a QueryDescriptor. Normalize checks it
// against a closed Schema of entity types and clamps its paging:
//
//   - page below 1 becomes 1
//   - page_size below 1 becomes the default, above the maximum becomes the maximum
//   - unknown entities, fields, orderings and relations are rejected
//   - nil filters and the "all" wildcard are dropped
//
// The Orchestrator then runs the cache-aside flow:
//
//	orch := search.NewOrchestrator(search.HospitalSchema(), store, source, cfg,
//		search.WithLogger(logger),
//	)
//	page, cached, err := orch.Search(ctx, search.QueryDescriptor{
//		Entity:     search.Patients,
//		SearchTerm: "ali",
//		Page:       1,
//		PageSize:   10,
//	})
//
// On a hit the stored page is returned as is, including its total count. On a
// miss the DataSource is queried and the page is stored under the search TTL.
// Cache failures are logged and degrade to a miss. Data source failures are
// returned.
//
// # Invalidation
//
// Writes go through Records, which commits through a Writer and then asks the
// Coordinator to purge the written entity type and its direct dependents:
//
//	records := search.NewRecords(schema, writer, coordinator, logger)
//	_, err := records.Update(ctx, search.Patients, 7, cache.Record{"phone": "555"})
//
// Extra entity types can be purged for one write with WithAdditionalInvalidations.
// WithCacheBypass forces a fresh read that still refills the entry.
package search
