package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/dapp"
	"github.com/spsmatrix/dapp/handlers"
	"github.com/spsmatrix/dapp/metrics"
	"github.com/spsmatrix/dapp/types"
	"github.com/spsmatrix/dapp/utils"
	"github.com/spsmatrix/dapp/wallet"
)

func main() {
	configPath := flag.String("config", "", "Path to the config file, if empty string defaults will be used")
	flag.Parse()

	cfg := &types.Config{}
	err := utils.ReadConfig(cfg, *configPath)
	if err != nil {
		logrus.Fatalf("error reading config file: %v", err)
	}
	utils.Config = cfg
	logWriter, logger := utils.InitLogger()
	defer logWriter.Dispose()

	logger.WithFields(logrus.Fields{
		"config":  *configPath,
		"version": utils.GetBuildVersion(),
		"network": cfg.Network.Descriptor.ChainName,
	}).Printf("starting")

	env, err := wallet.BuildEnvironment(cfg.Wallet.Bindings, &wallet.EnvironmentOptions{
		Network:           &cfg.Network.Descriptor,
		Authorizer:        wallet.NewPassphraseAuthorizer(cfg.Wallet.PassphraseEnv, cfg.Wallet.Account, false),
		EventPollInterval: cfg.Wallet.EventPollInterval,
		Logger:            logger.WithField("module", "wallet"),
	})
	if err != nil {
		utils.LogFatal(err, "error initializing wallet bindings", 0)
	}
	defer env.Close()

	controller, err := dapp.NewControllerFromConfig(cfg, env.Bindings, logger)
	if err != nil {
		utils.LogFatal(err, "error initializing controller", 0, map[string]interface{}{"contract": cfg.Contract.Address})
	}
	defer controller.Close()

	var frontend *handlers.Frontend
	var webserver *http.Server
	if cfg.Frontend.Enabled {
		frontend = handlers.NewFrontend(controller, cfg, logger)
		defer frontend.Close()

		webserver, err = startWebserver(frontend, logger)
		if err != nil {
			logger.Fatalf("error starting webserver: %v", err)
		}
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled && !cfg.Metrics.Public {
		metricsServer, err = metrics.StartMetricsServer(logger.WithField("module", "metrics"), cfg.Metrics.Host, cfg.Metrics.Port)
		if err != nil {
			logger.Fatalf("error starting metrics server: %v", err)
		}
	}

	if cfg.Wallet.AutoConnect {
		controller.AutoConnect(cfg.Wallet.AutoConnectDelay)
	}

	utils.WaitForCtrlC()
	logger.Println("exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, server := range []*http.Server{webserver, metricsServer} {
		if server == nil {
			continue
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			utils.LogError(err, "error shutting down http server", 0, map[string]interface{}{"addr": server.Addr})
		}
	}
}

func startWebserver(handler http.Handler, logger logrus.FieldLogger) (*http.Server, error) {
	if utils.Config.Frontend.HttpWriteTimeout == 0 {
		utils.Config.Frontend.HttpWriteTimeout = time.Second * 15
	}
	if utils.Config.Frontend.HttpReadTimeout == 0 {
		utils.Config.Frontend.HttpReadTimeout = time.Second * 15
	}
	if utils.Config.Frontend.HttpIdleTimeout == 0 {
		utils.Config.Frontend.HttpIdleTimeout = time.Second * 60
	}
	srv := &http.Server{
		Addr:         utils.Config.Server.Host + ":" + utils.Config.Server.Port,
		WriteTimeout: utils.Config.Frontend.HttpWriteTimeout,
		ReadTimeout:  utils.Config.Frontend.HttpReadTimeout,
		IdleTimeout:  utils.Config.Frontend.HttpIdleTimeout,
		Handler:      handler,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}

	logger.Printf("http server listening on %v", srv.Addr)
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Error serving frontend")
		}
	}()

	return srv, nil
}
