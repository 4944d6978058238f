// Package main hosts the harvester entrypoint.
//
// Architecture overview:
//   - CLI: a cobra root command with one run subcommand. Each invocation
//     performs a single harvest pass over the product registry and exits;
//     scheduling repeated passes is left to cron or an operator.
//   - Discovery: products with empty source slots are filled by querying the
//     Google Programmable Search API first and the Brave Search API as a
//     fallback. Candidate links are matched to slots by origin domain and
//     title keywords, and the registry is saved after each product so interrupted
//     runs keep their findings.
//   - Archive resolution: every source URL is resolved against the Wayback
//     Machine CDX index into ranked replay URLs. Spec pages take the single
//     latest capture; review pages take captures spread across months. URLs
//     with no captures escalate through the no-snapshot ladder, eventually
//     asking the archive to save the live page.
//   - Extraction pipeline: a small worker pool fetches ranked captures,
//     extracts article text with per-site selectors plus a density heuristic,
//     validates length and product mention, and writes each artifact exactly
//     once. Spec pages additionally yield a release date and a hero image.
//   - Durable state: a JSON product registry, three JSON retry caches
//     (request failures, missing snapshots, extraction failures), and plain
//     text artifacts under the content directory. All writes are atomic
//     (temp file + rename) so a killed run never corrupts state.
//   - Configuration & plumbing: Viper populates config from defaults, an
//     optional YAML file, and HARVESTER_* env vars; zap provides structured
//     logging; Prometheus metrics are exported via the middleware and
//     /metrics handler on the optional ops listener.
//
// Operational notes:
//   - Concurrency model: discovery and resolution are sequential (both are
//     rate-limit bound); extraction fans out to a fixed worker pool. Shutdown
//     is coordinated via context cancellation from SIGINT/SIGTERM.
//   - Rate limiting/backoff: the fetch client paces each traffic class
//     (search, fallback search, archive, scrape) with its own interval gate
//     and retries transient failures on an exponential backoff budget.
//   - Observability: zap logs carry product keys and URLs at key transitions;
//     Prometheus counters and histograms track fetches, discovery, snapshot
//     lookups, and task outcomes; the progress hub batches run lifecycle
//     events for the log, Prometheus, and status sinks. GET /api/run serves
//     the latest run's status.
//
// Quick checklist:
//   - Configure env vars: HARVESTER_SEARCH_GOOGLE_API_KEY and
//     HARVESTER_SEARCH_GOOGLE_ENGINE_ID (or HARVESTER_SEARCH_BRAVE_API_KEY),
//     optionally HARVESTER_ARCHIVE_SAVE_ACCESS_KEY / _SAVE_SECRET_KEY for
//     authenticated save-page-now requests.
//   - Run locally: go run ./cmd/harvester run --config config.yaml (or rely
//     solely on env overrides).
//   - The ops listener binds metrics.listen_addr when metrics.enabled is
//     true; health endpoints (/healthz, /readyz) stay lightweight.
package main
