// Package models defines the core domain models for Billparty.
//
// # Entities
//
//   - User: a local account, provisioned automatically on first login
//   - Party: a group of people splitting expenses, owned by one user
//   - Expense: a single payment within a party, split among participants
//   - BillImage: an uploaded receipt image attached to a party
//
// # Aggregate projections
//
// PartyAggregate is the read-side view of a whole party: the party row, its
// owner, every expense with its participant list, the contributor list, and
// the bill images. It is computed on demand by a single database query and
// never stored.
//
// # Design principles
//
//  1. Relationships are ID strings, never pointers, to avoid circular
//     references.
//  2. JSON tags on aggregate types match the keys emitted by the aggregate
//     query, so one decode pass produces the full graph.
//  3. Timestamps are Unix seconds.
package models
