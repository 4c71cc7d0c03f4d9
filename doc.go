// Package tally is a shared-expense ledger with debt simplification.
//
// Tally is a library first. Import it into your application, pick a store,
// and record group activity through a *Ledger:
//
//	import (
//	    "github.com/xraph/tally"
//	    "github.com/xraph/tally/store/memory"
//	)
//
//	l := tally.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// A group is a set of participants sharing one currency. Every monetary
// event in a group is an immutable entry:
//
//   - Expense: payers covered an amount that is split across participants.
//   - Settlement: a settler transfers amounts directly to participants.
//   - Simplification: transfers produced by a previous simplification run.
//
// Entries fold into a debt graph in which graph[u][v] is u's net debt to v
// and graph[v][u] == -graph[u][v]. Balances, pairwise debts and group
// totals are all read from that graph:
//
//	balances, err := l.Balances(ctx, groupID, "ben")
//
// # Simplification
//
// Simplify cancels circular debt among three or more participants. It
// finds cycles of positive debt, removes the smallest debt on each cycle
// from every edge, and appends the cancelled amounts as a simplification
// entry. Nobody's net position changes and history is never rewritten.
//
//	res, err := l.Simplify(ctx, groupID)
//
// Runs for the same group are serialized through a lock.Locker. The default
// locker is in-process; use lock/pglock to serialize across processes.
//
// # Amounts
//
// All amounts are int64 minor units of the group currency (cents for USD).
// Proportional expense shares are computed with exact decimals and
// rounded so that every payer's shares sum to what it paid.
//
// # TypeID
//
// Groups and entries use TypeIDs:
//
//	grp_01h2xcejqtf2nbrexx3vqjhp41  // Group ID
//	exp_01h2xcejqtf2nbrexx3vqjhp41  // Expense entry
//	stl_01h455vb4pex5vsknk084sn02q  // Settlement entry
//	smp_01h455vb4pex5vsknk084sn02q  // Simplification entry
package tally
