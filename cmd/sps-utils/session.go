package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spsmatrix/dapp/dapp"
	"github.com/spsmatrix/dapp/types"
	"github.com/spsmatrix/dapp/utils"
	"github.com/spsmatrix/dapp/wallet"
)

// session is a controller over the configured wallet bindings, with its
// notifications printed to stdout.
type session struct {
	cfg        *types.Config
	env        *wallet.Environment
	controller *dapp.Controller
	verbose    bool
	done       chan struct{}
	closeLog   func()
}

func newSession(cmd *cobra.Command) (*session, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	account, _ := cmd.Flags().GetString("account")

	cfg := &types.Config{}
	if !verbose {
		logrus.SetOutput(io.Discard)
	}
	err := utils.ReadConfig(cfg, configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}
	if account != "" {
		cfg.Wallet.Account = account
	}
	if verbose {
		cfg.Logging.OutputLevel = "debug"
		cfg.Logging.OutputStderr = true
	}
	// one-shot commands print every notification right away
	cfg.Notifications.ShowDelay = 0
	utils.Config = cfg

	logWriter, logger := utils.InitLogger()
	if !verbose {
		logger.SetOutput(io.Discard)
	}

	env, err := wallet.BuildEnvironment(cfg.Wallet.Bindings, &wallet.EnvironmentOptions{
		Network:           &cfg.Network.Descriptor,
		Authorizer:        wallet.NewPassphraseAuthorizer(cfg.Wallet.PassphraseEnv, cfg.Wallet.Account, true),
		EventPollInterval: cfg.Wallet.EventPollInterval,
		Logger:            logger.WithField("module", "wallet"),
	})
	if err != nil {
		logWriter.Dispose()
		return nil, fmt.Errorf("error initializing wallet bindings: %v", err)
	}

	controller, err := dapp.NewControllerFromConfig(cfg, env.Bindings, logger)
	if err != nil {
		env.Close()
		logWriter.Dispose()
		return nil, fmt.Errorf("error initializing controller: %v", err)
	}

	s := &session{
		cfg:        cfg,
		env:        env,
		controller: controller,
		verbose:    verbose,
		done:       make(chan struct{}),
		closeLog:   logWriter.Dispose,
	}
	go s.printNotifications(controller.Notifier().SubscribeNotifications(16))
	return s, nil
}

func (s *session) printNotifications(subscription *utils.Subscription[*dapp.Notification]) {
	defer subscription.Unsubscribe()
	for {
		select {
		case <-s.done:
			return
		case notification := <-subscription.Channel():
			fmt.Fprintf(os.Stdout, "[%v] %v\n", notification.Level, notification.Message)
		}
	}
}

// connect connects the wallet, prompting for the keystore passphrase if needed.
func (s *session) connect(ctx context.Context) error {
	if err := s.controller.Connect(ctx); err != nil {
		return err
	}
	snapshot := s.controller.Snapshot()
	if !snapshot.OnRequired {
		fmt.Fprintf(os.Stdout, "warning: wallet is on chain %v, %v (%v) is required\n", snapshot.ChainID, s.cfg.Network.Descriptor.ChainName, s.cfg.Network.Descriptor.ChainID)
	}
	return nil
}

func (s *session) Close() {
	// give the printer a moment for the last notification
	time.Sleep(20 * time.Millisecond)
	close(s.done)

	if s.verbose {
		for _, line := range s.controller.Notifier().DebugLines() {
			fmt.Fprintf(os.Stderr, "%v  %v\n", line.Time.Format("15:04:05.000"), line.Message)
		}
	}

	s.controller.Close()
	s.env.Close()
	s.closeLog()
}

// withSession runs fn with a connected (or, if connect is false, unconnected) session.
func withSession(cmd *cobra.Command, connect bool, fn func(ctx context.Context, s *session) error) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if connect {
		if err := s.connect(ctx); err != nil {
			return errors.New(dapp.UserMessage(err))
		}
	}
	if err := fn(ctx, s); err != nil {
		return errors.New(dapp.UserMessage(err))
	}
	return nil
}
