// Package crawler holds the shared domain types, the error taxonomy and the
// background crawl orchestrator. Upstream clients, analyzers and stores
// depend on the interfaces declared here rather than on each other.
package crawler
