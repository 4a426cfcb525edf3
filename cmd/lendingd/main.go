package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/adnhq/collateralized-lending/config"
	"github.com/adnhq/collateralized-lending/core/events"
	"github.com/adnhq/collateralized-lending/native/lending"
	"github.com/adnhq/collateralized-lending/native/oracle"
	"github.com/adnhq/collateralized-lending/native/token"
	"github.com/adnhq/collateralized-lending/observability/logging"
	"github.com/adnhq/collateralized-lending/rpc"
	"github.com/adnhq/collateralized-lending/state"
	"github.com/adnhq/collateralized-lending/storage"
)

// Symbols under which the ledger's three assets are keyed in state.
const (
	distributionSymbol = "DST"
	collateralASymbol  = "COLA"
	collateralBSymbol  = "COLB"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./config.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lendingd: %v\n", err)
		os.Exit(1)
	}

	log := logging.Setup("lendingd", cfg.Env)

	var db storage.Database
	if dir := strings.TrimSpace(cfg.DataDir); dir != "" {
		ldb, err := storage.NewLevelDB(dir)
		if err != nil {
			log.Error("failed to open database", "path", dir, "error", err)
			os.Exit(1)
		}
		db = ldb
		log.Info("using leveldb state", "path", dir)
	} else {
		db = storage.NewMemDB()
		log.Warn("no data directory configured, state will not survive restarts")
	}
	defer db.Close()

	ledgerState := state.NewLedgerState(db)

	feedA := oracle.NewManualFeed()
	feedB := oracle.NewManualFeed()
	if price := strings.TrimSpace(cfg.Oracle.CollateralAPrice); price != "" {
		if err := feedA.SetDecimal(price); err != nil {
			log.Error("invalid collateral A price", "error", err)
			os.Exit(1)
		}
	}
	if price := strings.TrimSpace(cfg.Oracle.CollateralBPrice); price != "" {
		if err := feedB.SetDecimal(price); err != nil {
			log.Error("invalid collateral B price", "error", err)
			os.Exit(1)
		}
	}
	rates := oracle.NewAdapter()
	rates.Bind(lending.CollateralA, feedA)
	rates.Bind(lending.CollateralB, feedB)

	emitter := events.NewMemoryEmitter()

	engine := lending.NewEngine(cfg.Custody(), lending.NewSingleAdmin(cfg.Admin()), cfg.Lending)
	engine.SetState(ledgerState)
	engine.SetDistributionToken(token.NewToken(distributionSymbol, ledgerState))
	engine.SetCollateralToken(lending.CollateralA, token.NewToken(collateralASymbol, ledgerState))
	engine.SetCollateralToken(lending.CollateralB, token.NewToken(collateralBSymbol, ledgerState))
	engine.SetOracle(rates)
	engine.SetEmitter(emitter)

	server := rpc.NewServer(engine)
	server.SetLogger(log)
	server.SetEventSource(emitter)
	server.BindManualFeed(lending.CollateralA, feedA)
	server.BindManualFeed(lending.CollateralB, feedB)

	log.Info("lending ledger ready",
		"admin", cfg.Admin().Hex(),
		"custody", cfg.Custody().Hex(),
		"seizureRecipient", string(cfg.Lending.SeizureRecipient),
	)
	if err := server.Start(cfg.ListenAddress); err != nil {
		log.Error("RPC server terminated", "error", err)
		os.Exit(1)
	}
}
