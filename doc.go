// Package treasury provides a multi-tenant treasury accounting engine for Go
// applications.
//
// Treasury is designed as a library, not a service. A terminal-facing host
// embeds it to track per-project balances, enforce funding-cycle spending
// ceilings, price token redemptions against overflow and run the protocol
// fee lifecycle. It provides:
//
//   - Per-(terminal, project) balance accounting that can never go negative
//   - Distribution limits keyed by funding cycle number (reset every cycle)
//   - Overflow allowances keyed by configuration (survive rollovers)
//   - Bonding-curve redemption pricing with ballot-aware rate selection
//   - Protocol fees with discounts, feeless exemptions, held-fee deferral,
//     refund-on-deposit and explicit settlement
//   - Split-based payout routing to allocators, projects and beneficiaries
//   - Pluggable persistence (memory, SQLite, Postgres, MongoDB)
//
// # Quick Start
//
// Create a treasury instance with your preferred store:
//
//	import (
//	    "github.com/fundpipe/treasury"
//	    "github.com/fundpipe/treasury/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create the engine for one terminal
//	t := treasury.New(store, treasury.TerminalConfig{
//	    Address:  "terminal-eth",
//	    Currency: "eth",
//	    Decimals: 18,
//	},
//	    treasury.WithFundingCycles(cycles),
//	    treasury.WithController(controller),
//	    treasury.WithProjects(projects),
//	)
//
//	// Start the engine (migrates the store)
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Stop()
//
// # Core Concepts
//
// Payments credit a project's balance:
//
//	result, err := t.Pay(ctx, treasury.PayRequest{
//	    ProjectID: 7,
//	    Payer:     "0xpayer",
//	    Amount:    treasury.NewAmount(1_000_000, "eth"),
//	})
//
// Distributions draw from the per-cycle limit and fan out across splits:
//
//	dist, err := t.DistributePayouts(ctx, treasury.DistributionRequest{
//	    ProjectID: 7,
//	    Amount:    treasury.NewAmount(500_000, "usd"),
//	    Caller:    "0xcaller",
//	})
//
// Redemptions convert project tokens back into a share of overflow:
//
//	redeemed, err := t.RedeemTokens(ctx, treasury.RedeemRequest{
//	    ProjectID:  7,
//	    Holder:     "0xholder",
//	    TokenCount: big.NewInt(250),
//	})
//
// All monetary calculations use arbitrary-precision integer arithmetic;
// nothing in the engine touches floating point. Amounts are denominated in
// the smallest unit of their currency.
//
// # Collaborators
//
// The engine owns only the accounting. Funding cycle scheduling, spending
// ceilings, split configuration, pricing, ownership and governance are
// consumed through small interfaces (FundingCycleProvider, Controller,
// PriceOracle, FeeGauge, SplitsStore, Directory, ProjectRegistry) that the
// host wires in with options. Every collaborator call is treated as
// fallible; only the fee gauge has a degrade path (zero discount).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	pay_01h2xcejqtf2nbrexx3vqjhp41   // Payment ID
//	fee_01h2xcejqtf2nbrexx3vqjhp41   // Held fee ID
//	dist_01h455vb4pex5vsknk084sn02q  // Distribution ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package treasury
