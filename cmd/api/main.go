package main

import (
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/photon-storage/go-common/log"

	"github.com/photon-storage/bounty-hub/advisory"
	"github.com/photon-storage/bounty-hub/api/server"
	"github.com/photon-storage/bounty-hub/api/service"
	"github.com/photon-storage/bounty-hub/auth"
	"github.com/photon-storage/bounty-hub/chain"
	"github.com/photon-storage/bounty-hub/cmd/runtime/version"
	"github.com/photon-storage/bounty-hub/config"
	"github.com/photon-storage/bounty-hub/database/mysql"
	"github.com/photon-storage/bounty-hub/escrow"
	"github.com/photon-storage/bounty-hub/notify"
	"github.com/photon-storage/bounty-hub/review"
)

var (
	//configPathFlag specifies the api config file path.
	configPathFlag = &cli.StringFlag{
		Name:     "config-file",
		Usage:    "The filepath to a json file, flag is required",
		Required: true,
	}

	// verbosityFlag defines the log level.
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info=default, warn, error, fatal, panic)",
		Value: "info",
	}

	// logFormatFlag specifies the log output format.
	logFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Specify log formatting. Supports: text, json, fluentd, journald.",
		Value: "text",
	}
)

func main() {
	app := cli.App{
		Name:    "bounty-hub",
		Usage:   "this is the api service of the bounty marketplace",
		Action:  exec,
		Version: version.Get(),
		Flags: []cli.Flag{
			configPathFlag,
			verbosityFlag,
			logFormatFlag,
		},
	}

	app.Before = func(ctx *cli.Context) error {
		logLvl, err := log.ParseLevel(ctx.String(verbosityFlag.Name))
		if err != nil {
			return err
		}

		logFmt, err := log.ParseFormat(ctx.String(logFormatFlag.Name))
		if err != nil {
			return err
		}

		return log.Init(logLvl, logFmt)
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("running api application failed", "error", err)
	}
}

func exec(ctx *cli.Context) error {
	cfg := &Config{}
	if err := config.Load(ctx.String(configPathFlag.Name), cfg); err != nil {
		log.Fatal("reading api config failed", "error", err)
	}

	db, err := mysql.NewMySQLDB(cfg.MySQL)
	if err != nil {
		log.Fatal("initialize mysql db error", "error", err)
	}

	producer, err := notify.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		log.Fatal("initialize kafka producer error", "error", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error("close kafka producer failed", "error", err)
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})

	node := chain.NewClient(cfg.NodeEndpoint, cfg.EscrowProgramID)
	signer := chain.NewSigner(
		cfg.SignerEndpoint,
		time.Duration(cfg.SignerTimeoutSeconds)*time.Second,
	)
	notifier := notify.New(db, producer, cfg.KafkaTopic)
	coordinator := escrow.NewCoordinator(
		escrow.NewStore(db),
		node,
		signer,
		notifier,
		cfg.PlatformFeeBps,
	)
	machine := review.NewMachine(review.NewStore(db), coordinator, notifier)

	server.New(
		cfg.Port,
		service.New(
			db,
			machine,
			coordinator,
			node,
			advisory.NewClient(cfg.AdvisoryEndpoint, rdb),
		),
		auth.Middleware(db, cfg.JWTSecret),
	).Run()
	return nil
}

// RedisConfig defines the redis connection config.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
}

// Config defines the config for api service.
type Config struct {
	Port                 int          `json:"port"`
	MySQL                mysql.Config `json:"mysql"`
	Redis                RedisConfig  `json:"redis"`
	KafkaBrokers         []string     `json:"kafka_brokers"`
	KafkaTopic           string       `json:"kafka_topic"`
	NodeEndpoint         string       `json:"node_endpoint"`
	EscrowProgramID      string       `json:"escrow_program_id"`
	SignerEndpoint       string       `json:"signer_endpoint"`
	SignerTimeoutSeconds int          `json:"signer_timeout_seconds"`
	AdvisoryEndpoint     string       `json:"advisory_endpoint"`
	JWTSecret            string       `json:"jwt_secret"`
	PlatformFeeBps       uint32       `json:"platform_fee_bps"`
}
