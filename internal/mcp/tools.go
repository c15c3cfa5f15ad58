package mcp

import "github.com/mark3labs/mcp-go/mcp"

var searchToolDef = mcp.NewTool("devonthink_search",
	mcp.WithDescription("Search DEVONthink. Results come from a cached snapshot of the query, revalidated with a cheap delta search, and are ranked by relevance boosted by how often each record was picked."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("DEVONthink search query, matched literally (case-sensitive cache key)"),
	),
	mcp.WithBoolean("launchbar",
		mcp.Description("Return LaunchBar items instead of plain results"),
	),
)

var groupToolDef = mcp.NewTool("devonthink_group",
	mcp.WithDescription("List the children of a DEVONthink group, ranked by pick frequency."),
	mcp.WithString("uuid",
		mcp.Required(),
		mcp.Description("Group uuid"),
	),
	mcp.WithBoolean("launchbar",
		mcp.Description("Return LaunchBar items instead of plain results"),
	),
)

var pickToolDef = mcp.NewTool("devonthink_pick",
	mcp.WithDescription("Record that a result was chosen. Raises its rank in later searches and returns its x-devonthink reference URL."),
	mcp.WithString("uuid",
		mcp.Required(),
		mcp.Description("Record uuid"),
	),
	mcp.WithBoolean("smart_group",
		mcp.Description("The record is a smart group"),
	),
)

var openToolDef = mcp.NewTool("devonthink_open",
	mcp.WithDescription("Open a record in DEVONthink through its reference URL."),
	mcp.WithString("uuid",
		mcp.Required(),
		mcp.Description("Record uuid"),
	),
	mcp.WithBoolean("smart_group",
		mcp.Description("The record is a smart group"),
	),
	mcp.WithBoolean("reveal",
		mcp.Description("Bring DEVONthink to the front first"),
	),
)

var cacheStatsToolDef = mcp.NewTool("devonthink_cache_stats",
	mcp.WithDescription("Show content cache, query cache and pick counts."),
)

var cacheClearToolDef = mcp.NewTool("devonthink_cache_clear",
	mcp.WithDescription("Drop cached query snapshots so the next search runs in full. Pick counts are kept."),
	mcp.WithString("query",
		mcp.Description("Only drop this query's snapshot"),
	),
	mcp.WithBoolean("content",
		mcp.Description("Also drop cached record payloads"),
	),
)
