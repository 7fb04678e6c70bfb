package launcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/evalphobia/logrus_sentry"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-epoch-trigger/chaintime"
	"github.com/rony4d/go-epoch-trigger/claims"
	"github.com/rony4d/go-epoch-trigger/contracts/beacon"
	"github.com/rony4d/go-epoch-trigger/contracts/rewarder"
	"github.com/rony4d/go-epoch-trigger/fees"
	"github.com/rony4d/go-epoch-trigger/flags"
	"github.com/rony4d/go-epoch-trigger/loop"
	"github.com/rony4d/go-epoch-trigger/scheduler"
	"github.com/rony4d/go-epoch-trigger/submitter"
)

var app = flags.NewApp()

func init() {
	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.ChainFlags()...)
	app.Flags = append(app.Flags, flags.EpochFlags()...)
	app.Flags = append(app.Flags, flags.TriggerFlags()...)
	app.Flags = append(app.Flags, flags.FeeFlags()...)
	app.Flags = append(app.Flags, flags.RelayFlags()...)
	app.Action = run
}

// Launch parses flags and runs the bot until a signal stops it.
func Launch(args []string) error {
	return app.Run(args)
}

func run(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}

	log, err := setupLogging(cfg.Logging)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"network": cfg.Rules.Name,
		"policy":  cfg.Trigger.Policy.String(),
		"model":   cfg.Rules.Epochs.Model.String(),
	}).Info("starting epoch trigger")

	readC, err := ethclient.Dial(cfg.Chain.ReadEndpoint)
	if err != nil {
		return fmt.Errorf("dial read endpoint %s: %w", cfg.Chain.ReadEndpoint, err)
	}
	defer readC.Close()

	writeC := readC
	if cfg.Chain.WriteEndpoint != "" && cfg.Chain.WriteEndpoint != cfg.Chain.ReadEndpoint {
		writeC, err = ethclient.Dial(cfg.Chain.WriteEndpoint)
		if err != nil {
			return fmt.Errorf("dial write endpoint %s: %w", cfg.Chain.WriteEndpoint, err)
		}
		defer writeC.Close()
	}

	lp, err := assemble(cfg, readC, writeC, log)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.WithField("signal", s.String()).Info("stopping at next tick boundary")
		cancel()
	}()

	return lp.Run(runCtx)
}

// assemble wires the leaf components into a ready loop.
func assemble(cfg Config, readC, writeC *ethclient.Client, log *logrus.Entry) (*loop.Loop, error) {
	chainID := cfg.ChainIDBig()

	var oracle loop.Oracle
	var beaconInfo loop.BeaconInfo
	switch cfg.Rules.Epochs.Model {
	case chaintime.ModelGenesis:
		oracle = chaintime.NewGenesisOracle(readC, cfg.Rules.Epochs.Genesis, cfg.Rules.Epochs.Duration)
	case chaintime.ModelBlockCount:
		oracle = chaintime.NewBlockCountOracle(readC, cfg.Rules.Epochs.BlocksPerEpoch, cfg.Rules.Epochs.SecondsPerBlock)
	case chaintime.ModelSlot:
		b := beacon.New(cfg.Rules.Contracts.Beacon, readC)
		oracle = chaintime.NewSlotOracle(b)
		beaconInfo = b
	default:
		return nil, fmt.Errorf("unknown chain-time model %v", cfg.Rules.Epochs.Model)
	}

	sched, err := scheduler.New(scheduler.Config{
		Policy: cfg.Trigger.Policy,
		Window: cfg.Trigger.Window,
		Lead:   cfg.Trigger.Lead,
	})
	if err != nil {
		return nil, err
	}

	signer, err := submitter.NewKeySigner(cfg.Chain.KeyHex, chainID)
	if err != nil {
		return nil, err
	}
	contract := rewarder.New(cfg.Rules.Contracts.Rewarder, readC)

	var sub loop.Submitter
	if cfg.Relay.Enabled {
		authKey := cfg.Relay.AuthKeyHex
		if authKey == "" {
			authKey = cfg.Chain.KeyHex
		}
		sub, err = submitter.NewFanout(writeC, signer, contract, chainID,
			cfg.Relay.Endpoints, authKey, cfg.Relay.Timeout, log)
		if err != nil {
			return nil, err
		}
	} else {
		sub = submitter.NewDirect(writeC, signer, contract, chainID, log)
	}

	claimer, err := claims.New(writeC, signer, contract, chainID, cfg.Claims.CeilingWei, log)
	if err != nil {
		return nil, err
	}

	lp, err := loop.New(loop.Config{
		PollInterval:    cfg.Trigger.PollInterval,
		RPCTimeout:      cfg.Chain.RPCTimeout,
		Strategy:        cfg.Fees.Strategy,
		MinTipWei:       cfg.Rules.Economy.MinTipWei,
		EscalatePercent: cfg.Fees.EscalatePercent,
		MaxFeeCapWei:    cfg.Fees.MaxFeeCapWei,
		Wallet:          signer.Address(),
		BalanceFloorWei: cfg.Claims.BalanceFloorWei,
	}, oracle, sched, fees.NewSource(readC), sub, claimer, readC, log)
	if err != nil {
		return nil, err
	}
	if beaconInfo != nil {
		lp.AttachBeacon(beaconInfo)
	}
	return lp, nil
}

func setupLogging(cfg LoggingConfig) (*logrus.Entry, error) {
	logger := logrus.New()
	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   cfg.Color,
			DisableColors: !cfg.Color,
			FullTimestamp: true,
		})
	}
	logger.SetLevel(verbosityToLevel(cfg.Verbosity))

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry hook: %w", err)
		}
		hook.StacktraceConfiguration.Enable = true
		logger.AddHook(hook)
	}
	return logger.WithField("app", "epoch-trigger"), nil
}

func verbosityToLevel(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.FatalLevel
	case v == 1:
		return logrus.ErrorLevel
	case v == 2:
		return logrus.WarnLevel
	case v == 3:
		return logrus.InfoLevel
	case v == 4:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}
