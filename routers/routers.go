package routers

import (
	"govstake-project/handlers"
	"govstake-project/metrics"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes for staking and governance
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Deposits principal and credits receipt units
	r.HandleFunc("/staking/stake", h.Stake).Methods("POST")

	// Withdraws staked principal; rewards are never auto-claimed
	r.HandleFunc("/staking/unstake", h.Unstake).Methods("POST")

	// Pays out the caller's share of vested reward pools
	r.HandleFunc("/staking/claim", h.Claim).Methods("POST")

	// Admits new rewards for a token, streamed over the vesting window
	r.HandleFunc("/staking/accrue", h.Accrue).Methods("POST")

	// Exempts a reward token from the slot cap and cleanup (admin)
	r.HandleFunc("/staking/whitelist", h.Whitelist).Methods("POST")

	// Removes a fully drained reward token record (permissionless)
	r.HandleFunc("/staking/cleanup", h.Cleanup).Methods("POST")

	r.HandleFunc("/staking/position/{staker}", h.GetPosition).Methods("GET")
	r.HandleFunc("/staking/voting-power/{staker}", h.GetVotingPower).Methods("GET")
	r.HandleFunc("/staking/rewards", h.GetRewardTokens).Methods("GET")
	r.HandleFunc("/staking/claimable/{staker}", h.GetClaimable).Methods("GET")

	// Creates a proposal in the current cycle (auto-starts one if due)
	r.HandleFunc("/governance/proposals", h.Propose).Methods("POST")

	// Casts current voting power on a proposal
	r.HandleFunc("/governance/proposals/{id}/vote", h.Vote).Methods("POST")

	// Settles a proposal once its voting window has closed
	r.HandleFunc("/governance/proposals/{id}/execute", h.Execute).Methods("POST")

	// Reattempts or abandons a recorded-failed fund movement
	r.HandleFunc("/governance/proposals/{id}/retry", h.RetryExecution).Methods("POST")
	r.HandleFunc("/governance/proposals/{id}/skip", h.SkipExecution).Methods("POST")

	// Advances governance to a fresh cycle (permissionless)
	r.HandleFunc("/governance/cycles/start", h.StartNewCycle).Methods("POST")

	r.HandleFunc("/governance/proposals/{id}", h.GetProposal).Methods("GET")
	r.HandleFunc("/governance/cycles/current", h.GetCurrentCycle).Methods("GET")

	// Credits ledger tokens for treasury funding and testing (admin)
	r.HandleFunc("/tokens/{symbol}/mint", h.Mint).Methods("POST")

	// Prometheus scrape endpoint (404 when metrics are disabled)
	r.Handle("/metrics", metrics.HTTPHandler()).Methods("GET")
}
