// Package resolver turns a page-view request into a concrete layout and its
// viewable sibling list. It absorbs missing explicit targets, runs template
// synchronization, applies the group visibility rules, falls back through
// the ordered default search, filters siblings for per-layout view
// permission, and merges guest pages into the final navigation list.
package resolver
