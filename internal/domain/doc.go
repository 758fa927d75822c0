// Package domain models emergency incident reports and the ordering and
// retention rules the feed engine enforces over them.
//
// # Records
//
// An Incident is a single report submitted from the field: a disaster type
// tag, an optional free-text message, an optional photo URL, and the
// reporter's location. The store assigns the id (a UUID) and the creation
// timestamp at insert time; both are immutable afterwards.
//
// # Disaster types
//
// The type tag is a closed-but-extensible category. "floods" and "wildfire"
// are the well-known values the client renders specially; anything else is
// carried through verbatim. An empty tag makes the record invalid and is
// rejected at submission.
//
// # Feed ordering
//
// Feed views are sorted newest first: descending by created_at, then
// descending by id to break exact timestamp ties deterministically. The same
// rule is applied by the store's range query (ORDER BY created_at DESC,
// id DESC) so a snapshot and a reconciled view never disagree on order.
// [CompareFeedOrder] is the single definition of the rule.
//
// # Retention
//
// Only incidents younger than the retention window (default 20 days) are
// eligible to appear in a feed view, regardless of whether they arrived via
// the initial snapshot or a live insert event.
package domain
