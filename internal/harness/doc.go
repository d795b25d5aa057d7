// Package harness runs trade-loop scenarios described in YAML against a
// real engine.
//
// # Scenario Format
//
//	name: three_party_swap
//	description: "A gives to B, B to C, C back to A"
//	clock: 1700000000          # optional start time (unix seconds)
//	verification: standard     # optional asset verification mode
//	loop: ring                 # default loop name for steps
//	assets:
//	  - name: a_nft
//	    holder: alice
//	steps:
//	  - caller: alice
//	    command: initialize_trade_loop
//	    args: { step_count: 3, timeout_seconds: 86400 }
//	  - caller: alice
//	    command: add_trade_step
//	    args: { step_index: 0, to: bob, assets: [a_nft] }
//	  - caller: bob
//	    command: approve_trade_step
//	    args: { step_index: 0 }
//	    advance: 60            # move the clock before this step
//	    format: legacy         # encode with the legacy wire format
//	    expect_error: InvalidAccountOwner
//	assertions:
//	  - type: step_status
//	    step: 0
//	    status: created
//	  - type: balance
//	    asset: a_nft
//	    holder: alice
//	    balance: 1
//	  - type: loop_exists
//	    exists: true
//	  - type: journal_count
//	    outcome: InvalidAccountOwner
//	    count: 1
//
// Participants, assets and loops are named. A name resolves to
// testutil.Key(name) unless it is already a 64-character hex key. Command
// args use the field names of the versioned wire format; key-valued fields
// (trade_id, to, assets, governance, new_authority, new_governance) take
// names. initialize_trade_loop defaults trade_id to the step's loop.
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory ledger, a manual clock and sequential
// invocation ids, so the trace of a scenario is stable and can be compared
// against a golden file with RunWithGolden.
package harness
