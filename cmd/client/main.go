package main

import (
	"chatly-client/internal/api"
	"chatly-client/internal/engine"
	"chatly-client/internal/push"
	"context"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"os"
	"os/signal"
	"time"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Client is starting")

	if err := godotenv.Load(".env"); err != nil {
		sugar.Debugf("No .env file loaded: %v", err)
	}

	engineCfg := engine.EnvConfig{}
	if err := env.Parse(&engineCfg); err != nil {
		sugar.Fatalf("Cannot parse engine env config: %v", err)
	}
	apiCfg := api.EnvConfig{}
	if err := env.Parse(&apiCfg); err != nil {
		sugar.Fatalf("Cannot parse api env config: %v", err)
	}
	pushCfg := push.EnvConfig{}
	if err := env.Parse(&pushCfg); err != nil {
		sugar.Fatalf("Cannot parse push env config: %v", err)
	}

	client, err := api.New(sugar, api.WithEnvConfig(apiCfg))
	if err != nil {
		sugar.Fatalf("Cannot create api Client instance: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	channel, err := push.Dial(ctx, sugar, push.WithEnvConfig(pushCfg), push.UserID(engineCfg.Self))
	cancel()
	if err != nil {
		sugar.Fatalf("Cannot connect to push channel: %v", err)
	}
	defer channel.Close()

	e, err := engine.New(sugar, engineCfg.Self, channel, client, engine.WithEnvConfig(engineCfg))
	if err != nil {
		sugar.Fatalf("Cannot create Engine instance: %v", err)
	}
	if err := e.Open(); err != nil {
		sugar.Fatalf("Cannot open Engine: %v", err)
	}
	defer e.Close()

	ctx, cancel = context.WithTimeout(context.Background(), apiCfg.Timeout)
	if err := e.LoadContacts(ctx); err != nil {
		sugar.Errorf("Cannot load contacts: %v", err)
	}
	cancel()

	c := newConsole(sugar, e, os.Stdout)
	defer c.close()

	done := make(chan error, 1)
	go func() {
		done <- c.run(context.Background(), os.Stdin)
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)

	select {
	case <-sigint:
		sugar.Info("Interrupted")
	case <-channel.Done():
		if err := channel.Err(); err != nil {
			sugar.Errorf("Push channel is gone: %v", err)
		}
	case err := <-done:
		if err != nil {
			sugar.Errorf("Console stopped: %v", err)
		}
	}

	sugar.Info("Client is stopped")
}
