package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"govstake-project/db"
	"govstake-project/governance"
	"govstake-project/handlers"
	"govstake-project/logger"
	"govstake-project/repository"
	"govstake-project/routers"
	"govstake-project/staking"
	"govstake-project/token"
	"govstake-project/vault"
)

const (
	principal    = "PRJ"
	adminAccount = "admin"
	vaultAccount = "treasury-vault"
)

func testServer(t *testing.T) (*mux.Router, *token.Registry) {
	t.Helper()
	logger.Logger = zap.NewNop()

	store, err := db.NewLevelDB(filepath.Join(t.TempDir(), "leveldb"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := token.NewRegistry(store)
	if err := registry.Register(principal, 0); err != nil {
		t.Fatalf("register principal: %v", err)
	}

	eng := staking.NewEngine(
		repository.NewStakingRepository(store),
		registry.ResolverFor("staking-engine"),
		staking.Config{
			PrincipalToken:  principal,
			Account:         "staking-engine",
			Admin:           adminAccount,
			StreamWindow:    259200,
			MaxRewardTokens: 10,
			MinAccrual:      1,
			PowerTimeUnit:   1,
		},
	)

	treasury := vault.New(registry.ResolverFor(vaultAccount), vaultAccount)
	mgr := governance.NewManager(
		repository.NewGovernanceRepository(store),
		eng,
		treasury,
		registry.ResolverFor("staking-engine"),
		governance.StaticParams{
			QuorumBps:        2000,
			ApprovalBps:      5100,
			MinimumQuorumBps: 500,
			ProposalWindow:   3600,
			VotingWindow:     3600,
			MinStakeBps:      100,
			MaxAmountBps:     5000,
			MaxActivePerKind: 10,
			MaxExecAttempts:  3,
			RetryCooldown:    60,
		},
	)

	handler := handlers.NewHandler(eng, mgr, registry, adminAccount)
	router := mux.NewRouter()
	routers.RegisterRoutes(router, handler)
	return router, registry
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestStakeAndGetPosition(t *testing.T) {
	router, registry := testServer(t)
	if err := registry.Mint(principal, "alice", 1000); err != nil {
		t.Fatalf("mint: %v", err)
	}

	res := doJSON(t, router, http.MethodPost, "/staking/stake",
		map[string]interface{}{"staker": "alice", "amount": 400})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, router, http.MethodGet, "/staking/position/alice", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var pos struct {
		Balance uint64 `json:"balance"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &pos); err != nil {
		t.Fatalf("decode position: %v", err)
	}
	if pos.Balance != 400 {
		t.Fatalf("expected balance 400, got %d", pos.Balance)
	}
}

func TestStakeInvalidPayload(t *testing.T) {
	router, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/staking/stake", bytes.NewReader([]byte("not json")))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestStakeZeroAmount(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodPost, "/staking/stake",
		map[string]interface{}{"staker": "alice", "amount": 0})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestUnstakeMoreThanStaked(t *testing.T) {
	router, registry := testServer(t)
	if err := registry.Mint(principal, "alice", 1000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	res := doJSON(t, router, http.MethodPost, "/staking/stake",
		map[string]interface{}{"staker": "alice", "amount": 100})
	if res.Code != http.StatusCreated {
		t.Fatalf("stake failed, code=%d body=%s", res.Code, res.Body.String())
	}

	res = doJSON(t, router, http.MethodPost, "/staking/unstake",
		map[string]interface{}{"staker": "alice", "amount": 500})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestGetPositionMissing(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodGet, "/staking/position/nobody", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestWhitelistRejectsNonAdmin(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodPost, "/staking/whitelist",
		map[string]interface{}{"caller": "mallory", "token": "AAA", "whitelisted": true})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestCleanupUnknownToken(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodPost, "/staking/cleanup",
		map[string]interface{}{"token": "NOPE"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestProposeAndGetStatus(t *testing.T) {
	router, registry := testServer(t)
	if err := registry.Mint(principal, "alice", 1000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := registry.Mint(principal, vaultAccount, 10_000); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	res := doJSON(t, router, http.MethodPost, "/staking/stake",
		map[string]interface{}{"staker": "alice", "amount": 400})
	if res.Code != http.StatusCreated {
		t.Fatalf("stake failed, code=%d body=%s", res.Code, res.Body.String())
	}

	res = doJSON(t, router, http.MethodPost, "/governance/proposals",
		map[string]interface{}{
			"proposer": "alice",
			"kind":     "boost",
			"token":    principal,
			"amount":   500,
		})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body: %s", res.Code, res.Body.String())
	}
	var created struct {
		ProposalID uint64 `json:"proposal_id"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode propose response: %v", err)
	}
	if created.ProposalID == 0 {
		t.Fatalf("expected a proposal id, body: %s", res.Body.String())
	}

	res = doJSON(t, router, http.MethodGet, "/governance/proposals/1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var status struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.State != "pending" {
		t.Fatalf("expected pending state, got %q", status.State)
	}

	res = doJSON(t, router, http.MethodGet, "/governance/cycles/current", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestVoteBeforeWindowOpens(t *testing.T) {
	router, registry := testServer(t)
	if err := registry.Mint(principal, "alice", 1000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := registry.Mint(principal, vaultAccount, 10_000); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	res := doJSON(t, router, http.MethodPost, "/staking/stake",
		map[string]interface{}{"staker": "alice", "amount": 400})
	if res.Code != http.StatusCreated {
		t.Fatalf("stake failed, code=%d body=%s", res.Code, res.Body.String())
	}
	res = doJSON(t, router, http.MethodPost, "/governance/proposals",
		map[string]interface{}{"proposer": "alice", "kind": "boost", "token": principal, "amount": 500})
	if res.Code != http.StatusCreated {
		t.Fatalf("propose failed, code=%d body=%s", res.Code, res.Body.String())
	}

	// the proposal window is still open, so voting has not started
	res = doJSON(t, router, http.MethodPost, "/governance/proposals/1/vote",
		map[string]interface{}{"voter": "alice", "support": true})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestProposeInvalidKind(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodPost, "/governance/proposals",
		map[string]interface{}{"proposer": "alice", "kind": "bogus", "token": principal, "amount": 500})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestGetProposalMissing(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodGet, "/governance/proposals/42", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestGetCurrentCycleBeforeFirst(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodGet, "/governance/cycles/current", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestMintRejectsNonAdmin(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodPost, "/tokens/AAA/mint",
		map[string]interface{}{"caller": "mallory", "to": "mallory", "amount": 1000})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestMintByAdmin(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodPost, "/tokens/AAA/mint",
		map[string]interface{}{"caller": adminAccount, "to": "bob", "amount": 1000})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body: %s", res.Code, res.Body.String())
	}
}
