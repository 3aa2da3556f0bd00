// Package models defines the core domain models for splitledger.
//
// # Models
//
//   - User: a person who can pay for or share an expense (read-only here)
//   - Group: a set of users that share expenses
//   - Expense: an amount paid by one user and split among participants
//   - ExpenseSplit: one participant's share of an expense
//   - Settlement: a recorded payment from one user to another
//   - PaymentApplication: part of a payment consumed against a split
//
// # Design Principles
//
// 1. Money is decimal.Decimal, never float64.
// 2. Statuses are closed string enums parsed at the boundary.
// 3. Relationships are ID strings, never pointers between models.
// 4. An ExpenseSplit keeps its original Amount; payments only grow Settled.
package models
