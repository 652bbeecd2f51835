package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"govstake-project/db"
	"govstake-project/governance"
	"govstake-project/handlers"
	"govstake-project/logger"
	"govstake-project/metrics"
	"govstake-project/repository"
	"govstake-project/routers"
	"govstake-project/staking"
	"govstake-project/token"
	"govstake-project/vault"
)

// viperParams reads governance parameters live from viper so a config reload
// shapes the next cycle without touching in-flight proposals.
type viperParams struct{}

func (viperParams) Params() governance.Params {
	return governance.Params{
		QuorumBps:        viper.GetUint64("governance.quorum_bps"),
		ApprovalBps:      viper.GetUint64("governance.approval_bps"),
		MinimumQuorumBps: viper.GetUint64("governance.minimum_quorum_bps"),
		ProposalWindow:   viper.GetInt64("governance.proposal_window_secs"),
		VotingWindow:     viper.GetInt64("governance.voting_window_secs"),
		MinStakeBps:      viper.GetUint64("governance.min_stake_bps"),
		MaxAmountBps:     viper.GetUint64("governance.max_amount_bps"),
		MaxActivePerKind: viper.GetInt("governance.max_active_per_kind"),
		MaxExecAttempts:  viper.GetInt("governance.max_exec_attempts"),
		RetryCooldown:    viper.GetInt64("governance.retry_cooldown_secs"),
	}
}

func main() {
	// Load config
	viper.SetConfigFile("config/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}
	viper.WatchConfig()

	appLogFile := viper.GetString("log.app_log_file")
	logLevel := viper.GetString("log.level")

	if err := logger.InitLogger(appLogFile, logLevel); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}

	if viper.GetBool("metrics.enabled") {
		metrics.InitializePrometheus()
	}

	logger.Logger.Info("Starting governance staking server...")

	// Connect to LevelDB
	leveldbPath := viper.GetString("leveldb.path")
	ldb, err := db.NewLevelDB(leveldbPath)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	// Token ledger and treasury vault
	registry := token.NewRegistry(ldb)
	principal := viper.GetString("staking.principal_token")
	if err := registry.Register(principal, 0); err != nil {
		logger.Logger.Fatal("Failed to register principal token", zap.Error(err))
	}

	stakingAccount := viper.GetString("staking.account")
	vaultAccount := viper.GetString("vault.account")
	treasury := vault.New(registry.ResolverFor(vaultAccount), vaultAccount)

	// Initialize repositories
	stakingRepo := repository.NewStakingRepository(ldb)
	governanceRepo := repository.NewGovernanceRepository(ldb)

	// Staking engine
	engine := staking.NewEngine(stakingRepo, registry.ResolverFor(stakingAccount), staking.Config{
		PrincipalToken:  principal,
		Account:         stakingAccount,
		Admin:           viper.GetString("accounts.admin"),
		StreamWindow:    viper.GetInt64("staking.stream_window_secs"),
		MaxRewardTokens: viper.GetInt("staking.max_reward_tokens"),
		MinAccrual:      viper.GetUint64("staking.min_accrual"),
		PowerTimeUnit:   viper.GetInt64("staking.power_time_unit_secs"),
	})

	// Governance cycle manager; sole holder of the vault reference
	manager := governance.NewManager(governanceRepo, engine, treasury,
		registry.ResolverFor(stakingAccount), viperParams{})

	// Initialize HTTP handlers
	h := handlers.NewHandler(engine, manager, registry, viper.GetString("accounts.admin"))

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", viper.GetInt("server.port")),
		Handler: ghandlers.RecoveryHandler()(ghandlers.CompressHandler(r)),
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", viper.GetInt("server.port")))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	srv.Close()
}
