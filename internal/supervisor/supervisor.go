// Package supervisor wires the Protocol Engine, Command Surface,
// Notification Scavenger, Sample Broadcaster, Acceptor, and Reaper
// together and drives the startup/shutdown orchestration script.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/hrbridge/internal/broadcast"
	"github.com/srg/hrbridge/internal/config"
	"github.com/srg/hrbridge/internal/engine"
	"github.com/srg/hrbridge/internal/module"
	"github.com/srg/hrbridge/internal/scavenger"
	"github.com/srg/hrbridge/internal/uart"
)

// DevicePath and TCPPort are the compile-time constants spec.md §6 fixes.
const (
	DevicePath = "/dev/hm11"
	TCPPort    = 9000
)

// shutdownGrace bounds the final NotifyOff/Echo exchange and reaper drain
// so an unresponsive module can't hang process exit indefinitely.
const shutdownGrace = 5 * time.Second

// Supervisor owns the process lifecycle: it brings the physical link up in
// the sequence spec.md §4.5 describes, runs the steady-state components
// concurrently, and tears everything down on an interrupt signal.
type Supervisor struct {
	logger *logrus.Logger
	cfg    *config.Config

	tr        uart.Transport
	eng       *engine.Engine
	surface   *module.Surface
	broadcast *broadcast.Broadcaster
	scavenger *scavenger.Scavenger
	acceptor  *broadcast.Acceptor
	reaper    *broadcast.Reaper
}

// New builds a Supervisor over an already-open transport (the real serial
// device in production, a fake pty-backed transport in tests).
func New(tr uart.Transport, cfg *config.Config, logger *logrus.Logger) *Supervisor {
	if logger == nil {
		logger = logrus.New()
	}
	b := broadcast.New(logger)
	eng := engine.New(tr, b.SampleSource, logger)
	return &Supervisor{
		logger:    logger,
		cfg:       cfg,
		tr:        tr,
		eng:       eng,
		surface:   module.New(eng),
		broadcast: b,
		scavenger: scavenger.New(eng, b, logger),
		acceptor:  broadcast.NewAcceptor(b, logger),
		reaper:    broadcast.NewReaper(b, logger),
	}
}

// Run brings the link up, serves until interrupted, then tears down
// cleanly. It returns a non-nil error only on setup failure (spec.md §7).
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.startup(ctx); err != nil {
		return fmt.Errorf("supervisor: startup: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	go s.scavenger.RunInterval(runCtx, time.Duration(s.cfg.ScavengeIntervalMs)*time.Millisecond)
	go s.reaper.RunInterval(runCtx, time.Duration(s.cfg.ReapIntervalMs)*time.Millisecond)

	acceptDone := make(chan error, 1)
	go func() {
		acceptDone <- s.acceptor.Run(runCtx, TCPPort, s.broadcast.SampleSource)
	}()

	<-ctx.Done()
	s.logger.Info("shutdown signal received")
	cancel()
	s.acceptor.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	s.reaper.DrainAll(shutdownCtx)
	s.shutdown(shutdownCtx)

	if err := <-acceptDone; err != nil {
		s.logger.WithError(err).Warn("acceptor exited with error")
	}
	return nil
}

// startup runs spec.md §4.5's orchestration script steps 1-6.
func (s *Supervisor) startup(ctx context.Context) error {
	echoRes, err := s.surface.Echo(ctx)
	if err != nil {
		return fmt.Errorf("echo: %w", err)
	}
	s.logger.WithField("result", echoRes).Info("module echo ok")

	if err := s.surface.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := s.surface.SetRole(ctx, engine.RoleMaster); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if err := s.surface.SetPassive(ctx); err != nil {
		return fmt.Errorf("set passive: %w", err)
	}
	connRes, err := s.surface.ConnectMac(ctx, s.cfg.PeerMAC)
	if err != nil {
		return fmt.Errorf("connect mac: %w", err)
	}
	if connRes != engine.Connected {
		return fmt.Errorf("connect mac: peer %s unreachable", s.cfg.PeerMAC)
	}
	if err := s.surface.NotifyOn(ctx, s.cfg.CharacteristicUUID); err != nil {
		return fmt.Errorf("notify on: %w", err)
	}
	return nil
}

// shutdown runs spec.md §4.5's orchestration script steps 8: NotifyOff, a
// final Echo to confirm link state, and transport close.
func (s *Supervisor) shutdown(ctx context.Context) {
	if err := s.surface.NotifyOff(ctx, s.cfg.CharacteristicUUID); err != nil {
		s.logger.WithError(err).Warn("notify off failed during shutdown")
	}
	if res, err := s.surface.Echo(ctx); err != nil {
		s.logger.WithError(err).Warn("final echo failed during shutdown")
	} else {
		s.logger.WithField("result", res).Info("final echo ok")
	}
	if err := s.tr.Close(); err != nil {
		s.logger.WithError(err).Warn("transport close failed")
	}
}
