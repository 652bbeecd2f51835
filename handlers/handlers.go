package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"govstake-project/governance"
	"govstake-project/logger"
	"govstake-project/staking"
	"govstake-project/token"
)

// Handler contains the HTTP handlers for the staking and governance API
type Handler struct {
	Staking    *staking.Engine
	Governance *governance.Manager
	Registry   *token.Registry
	Admin      string
}

// NewHandler creates and returns a new Handler instance
func NewHandler(eng *staking.Engine, gov *governance.Manager, reg *token.Registry, admin string) *Handler {
	return &Handler{Staking: eng, Governance: gov, Registry: reg, Admin: admin}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps the engines' error taxonomy onto HTTP codes: validation
// errors are 400, authorization 403, missing records 404, everything that
// conflicts with or exceeds current state 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, staking.ErrZeroAmount),
		errors.Is(err, staking.ErrZeroAddress),
		errors.Is(err, staking.ErrDustAccrual),
		errors.Is(err, governance.ErrInvalidKind),
		errors.Is(err, governance.ErrZeroAmount),
		errors.Is(err, governance.ErrZeroRecipient):
		return http.StatusBadRequest
	case errors.Is(err, staking.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, staking.ErrUnknownRewardToken),
		errors.Is(err, token.ErrUnknownToken),
		errors.Is(err, governance.ErrProposalNotFound):
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

type stakeRequest struct {
	Staker string `json:"staker"`
	Amount uint64 `json:"amount"`
}

// Stake handles POST requests to deposit principal and mint receipt units
func (h *Handler) Stake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode stake request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	received, err := h.Staking.Stake(req.Staker, req.Amount)
	if err != nil {
		logger.Logger.Error("Failed to stake", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Stake recorded",
		"received": received,
	})
}

type unstakeRequest struct {
	Staker string `json:"staker"`
	Amount uint64 `json:"amount"`
	To     string `json:"to"`
}

// Unstake handles POST requests to withdraw staked principal
func (h *Handler) Unstake(w http.ResponseWriter, r *http.Request) {
	var req unstakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode unstake request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}
	if req.To == "" {
		req.To = req.Staker
	}

	if err := h.Staking.Unstake(req.Staker, req.Amount, req.To); err != nil {
		logger.Logger.Error("Failed to unstake", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Unstake complete"})
}

type claimRequest struct {
	Staker string   `json:"staker"`
	Tokens []string `json:"tokens"`
	To     string   `json:"to"`
}

// Claim handles POST requests to pay out vested rewards
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode claim request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}
	if req.To == "" {
		req.To = req.Staker
	}

	claimed, err := h.Staking.Claim(req.Staker, req.Tokens, req.To)
	if err != nil {
		logger.Logger.Error("Failed to claim", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rewards claimed",
		"claimed": claimed,
	})
}

type accrueRequest struct {
	Token  string `json:"token"`
	From   string `json:"from"`
	Amount uint64 `json:"amount"`
}

// Accrue handles POST requests to admit new rewards for a token
func (h *Handler) Accrue(w http.ResponseWriter, r *http.Request) {
	var req accrueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode accrue request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	received, err := h.Staking.Accrue(req.Token, req.From, req.Amount)
	if err != nil {
		logger.Logger.Error("Failed to accrue", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Rewards accrued",
		"received": received,
	})
}

type whitelistRequest struct {
	Caller      string `json:"caller"`
	Token       string `json:"token"`
	Whitelisted bool   `json:"whitelisted"`
}

// Whitelist handles POST requests to toggle a reward token's exemption
func (h *Handler) Whitelist(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode whitelist request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	if err := h.Staking.SetWhitelisted(req.Caller, req.Token, req.Whitelisted); err != nil {
		logger.Logger.Error("Failed to whitelist", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Whitelist updated"})
}

type cleanupRequest struct {
	Token string `json:"token"`
}

// Cleanup handles POST requests to remove a drained reward token record
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode cleanup request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	if err := h.Staking.Cleanup(req.Token); err != nil {
		logger.Logger.Error("Failed to clean up reward token", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Reward token removed"})
}

// GetPosition handles GET requests for one staker's position
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	staker := mux.Vars(r)["staker"]
	pos, err := h.Staking.Position(staker)
	if err != nil {
		logger.Logger.Error("Failed to get position", zap.Error(err))
		writeError(w, err)
		return
	}
	if pos == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no position"})
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// GetVotingPower handles GET requests for a staker's current voting power
func (h *Handler) GetVotingPower(w http.ResponseWriter, r *http.Request) {
	staker := mux.Vars(r)["staker"]
	power, err := h.Staking.VotingPower(staker, h.Staking.Now())
	if err != nil {
		logger.Logger.Error("Failed to get voting power", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"staker": staker, "voting_power": power})
}

// GetRewardTokens handles GET requests listing all reward token streams
func (h *Handler) GetRewardTokens(w http.ResponseWriter, r *http.Request) {
	states, err := h.Staking.RewardTokens()
	if err != nil {
		logger.Logger.Error("Failed to list reward tokens", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reward_tokens": states})
}

// GetClaimable handles GET requests for a staker's claimable amounts
func (h *Handler) GetClaimable(w http.ResponseWriter, r *http.Request) {
	staker := mux.Vars(r)["staker"]
	claimable, err := h.Staking.Claimable(staker)
	if err != nil {
		logger.Logger.Error("Failed to get claimable", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"staker": staker, "claimable": claimable})
}

type mintRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
	FeeBps uint64 `json:"fee_bps,omitempty"`
}

// Mint handles POST requests that credit ledger tokens, admin only
func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode mint request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}
	if req.Caller != h.Admin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin only"})
		return
	}

	if err := h.Registry.Register(symbol, req.FeeBps); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Registry.Mint(symbol, req.To, req.Amount); err != nil {
		logger.Logger.Error("Failed to mint", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Minted"})
}
