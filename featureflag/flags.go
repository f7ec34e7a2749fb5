package featureflag

type Flag string

const (
	// Deduplicate range query results by object id before they reach the
	// wire. Objects straddling octant boundaries are otherwise returned once
	// per referencing leaf.
	FlagQueryResultDedup Flag = "QUERY_RESULT_DEDUP"

	// Strip payloads from query responses, returning ids and bounds only.
	FlagQueryResultBoundsOnly Flag = "QUERY_RESULT_BOUNDS_ONLY"

	// Disable the periodic inbound message summary log.
	FlagDisableMessageSummary Flag = "DISABLE_MESSAGE_SUMMARY"

	// Disable the stats message so profiling overlays cannot read index
	// internals.
	FlagDisableStats Flag = "DISABLE_STATS"
)
