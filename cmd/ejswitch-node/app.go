package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ejswitch/pkg/address"
	"ejswitch/pkg/config"
	"ejswitch/pkg/identity"
	"ejswitch/pkg/identity/encryptor"
	"ejswitch/pkg/jack/mem"
	"ejswitch/pkg/jack/tcp"
	"ejswitch/pkg/jack/udp"
	"ejswitch/pkg/observability"
	"ejswitch/pkg/router"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	zap.L().Info("ejswitch-node started", zap.String("app", cfg.AppName))

	idents, err := loadIdentities(cfg.Identity)
	if err != nil {
		zap.L().Error("failed to init identity", zap.Error(err))
		return 1
	}
	for _, id := range idents.All() {
		zap.L().Info("identity loaded",
			zap.String("name", id.Name()), zap.String("location", id.Location().String()))
	}

	// The switch starts empty and threaded; jacks registered below come up
	// immediately.
	rt, err := router.New(router.Options{FrameLog: cfg.Router.FrameLog}, nil, nil)
	if err != nil {
		zap.L().Error("failed to build router", zap.Error(err))
		return 1
	}

	fabric := mem.NewNetwork()
	for _, jc := range cfg.Jacks {
		var (
			j   router.Jack
			err error
		)
		switch jc.Kind {
		case "udp":
			j, err = udp.New(rt, jc.Host, jc.Port)
		case "tcp":
			j, err = tcp.New(rt, jc.Host, jc.Port)
		case "mem":
			j, err = fabric.Jack(rt, jc.Name)
		}
		if err != nil {
			zap.L().Error("failed to bring up jack",
				zap.String("kind", jc.Kind), zap.Error(err))
			rt.Run(router.Stopped)
			return 1
		}
		if err := rt.RegisterJack(j); err != nil {
			zap.L().Error("failed to register jack",
				zap.String("kind", jc.Kind), zap.Error(err))
			rt.Run(router.Stopped)
			return 1
		}
		zap.L().Info("jack up", zap.String("iface", j.Interface().String()))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	zap.L().Info("shutting down", zap.String("signal", s.String()))
	rt.Run(router.Stopped)
	return 0
}

// loadIdentities builds the identity cache from config: a preloaded cache
// file, an explicit identity, or a generated ed25519 identity when a name
// and location are configured without key material.
func loadIdentities(c config.IdentityConfig) (*identity.Cache, error) {
	if c.CacheFile != "" {
		return identity.LoadFile(c.CacheFile)
	}
	cache := identity.NewCache()
	if c.Name == "" || len(c.Location) == 0 {
		return cache, nil
	}
	proto := address.Canonical(c.Encryptor).([]any)
	if len(proto) == 0 {
		enc, err := encryptor.GenerateEd25519()
		if err != nil {
			return nil, err
		}
		proto = enc.Proto()
		zap.L().Info("generated new ed25519 identity (persist to config.identity.encryptor)",
			zap.String("name", c.Name))
	}
	id := identity.New(c.Name, proto, address.Address(address.Canonical(c.Location).([]any)), nil)
	if err := cache.Update(id); err != nil {
		return nil, err
	}
	return cache, nil
}
