package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"govstake-project/logger"
	"govstake-project/models"
)

type proposeRequest struct {
	Proposer  string `json:"proposer"`
	Kind      string `json:"kind"`
	Token     string `json:"token"`
	Amount    uint64 `json:"amount"`
	Recipient string `json:"recipient,omitempty"`
}

// Propose handles POST requests to create a proposal in the current cycle
func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode propose request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	id, err := h.Governance.Propose(req.Proposer, models.ProposalKind(req.Kind), req.Token, req.Amount, req.Recipient)
	if err != nil {
		logger.Logger.Error("Failed to propose", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Proposal created",
		"proposal_id": id,
	})
}

func proposalID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
}

type voteRequest struct {
	Voter   string `json:"voter"`
	Support bool   `json:"support"`
}

// Vote handles POST requests to cast a vote on a proposal
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode vote request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return
	}

	if err := h.Governance.Vote(req.Voter, id, req.Support); err != nil {
		logger.Logger.Error("Failed to vote", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Vote recorded"})
}

// Execute handles POST requests to settle a proposal after voting closes
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return
	}

	state, err := h.Governance.Execute(id)
	if err != nil {
		logger.Logger.Error("Failed to execute proposal", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Proposal settled",
		"state":   state,
	})
}

// RetryExecution handles POST requests to reattempt a failed fund movement
func (h *Handler) RetryExecution(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return
	}

	if err := h.Governance.RetryExecution(id); err != nil {
		logger.Logger.Error("Failed to retry execution", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Retry attempted"})
}

// SkipExecution handles POST requests to abandon a repeatedly failing movement
func (h *Handler) SkipExecution(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return
	}

	if err := h.Governance.SkipExecution(id); err != nil {
		logger.Logger.Error("Failed to skip execution", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Execution abandoned"})
}

// StartNewCycle handles POST requests to advance governance to a fresh cycle
func (h *Handler) StartNewCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.Governance.StartNewCycle()
	if err != nil {
		logger.Logger.Error("Failed to start cycle", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Cycle started",
		"cycle":   cycle,
	})
}

// GetProposal handles GET requests for a proposal and its derived status
func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return
	}

	status, err := h.Governance.Status(id)
	if err != nil {
		logger.Logger.Error("Failed to get proposal", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// GetCurrentCycle handles GET requests for the cycle proposals currently join
func (h *Handler) GetCurrentCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.Governance.CurrentCycle()
	if err != nil {
		logger.Logger.Error("Failed to get current cycle", zap.Error(err))
		writeError(w, err)
		return
	}
	if cycle == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle started"})
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}
