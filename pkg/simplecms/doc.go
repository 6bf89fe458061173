// Package simplecms provides the article-content pipeline of a small CMS with
// pluggable repository, moderation and object-storage backends.
//
// Writes pass through a moderation gate: title, excerpt, body and thumbnail
// of every published article are screened concurrently, and any rejection
// vetoes the write. Reads pass through the unlock gate and the block
// transformer: paywalled content is truncated to its teaser unless the
// requester holds an unlock record, and the stored Delta document is turned
// into either a block list (uni-app-x clients) or a single HTML string.
//
// The pipeline is registered as lifecycle hooks on the Service, so callers
// can add their own hooks before or after it with WithHooks.
//
// Implementations of repositories (memory, Postgres), view counters (Redis),
// moderation providers, object storage and image-library providers live in
// subpackages.
package simplecms
