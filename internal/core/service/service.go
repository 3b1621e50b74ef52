// Package service wires the relay together: storage, session store, event
// gateway, relay queue, executor, and the outbound notifier.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/termbridge/termbridge/internal/channels/feishu"
	"github.com/termbridge/termbridge/internal/core/config"
	"github.com/termbridge/termbridge/internal/core/db"
	"github.com/termbridge/termbridge/internal/core/executor"
	"github.com/termbridge/termbridge/internal/core/extract"
	"github.com/termbridge/termbridge/internal/core/gateway"
	"github.com/termbridge/termbridge/internal/core/models"
	"github.com/termbridge/termbridge/internal/core/relay"
	"github.com/termbridge/termbridge/internal/core/session"
)

// Service owns the long-running pieces of the relay.
type Service struct {
	cfg      *config.Config
	database *db.DB

	Store    *session.Store
	Queue    *relay.Queue
	Gateway  *gateway.Gateway
	Notifier *feishu.Notifier
}

// New builds a service from config. The caller closes it.
func New(cfg *config.Config) (*Service, error) {
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(database, cfg.SessionTTL, cfg.MaxCommands)

	tmux := executor.NewTmux(cfg.TmuxSession)
	tmux.Timeout = cfg.CommandTimeout

	queue := relay.New(database, store, tmux, relay.Options{
		DrainInterval: cfg.DrainInterval,
		MaxRetries:    cfg.MaxRetries,
	})

	gw := gateway.New(cfg.VerifySecret, cfg.Channel, extract.New(store), store, 64)

	s := &Service{
		cfg:      cfg,
		database: database,
		Store:    store,
		Queue:    queue,
		Gateway:  gw,
		Notifier: feishu.New(cfg.WebhookURL),
	}

	gw.HandleInteraction(gateway.ActionViewDetails, s.onViewDetails)
	gw.HandleInteraction(gateway.ActionCopySessionID, s.onCopySessionID)
	gw.HandleInteraction(gateway.ActionGotoTerminal, s.onGotoTerminal)

	if cfg.WebhookURL != "" {
		queue.Notify(s.Notifier.QueueObserver)
	}

	return s, nil
}

// Close releases the underlying database.
func (s *Service) Close() error {
	return s.database.Close()
}

// Start binds the callback listener and runs until ctx is done. Failing to
// bind is the one fatal startup error; everything afterwards degrades and
// logs instead of crashing.
func (s *Service) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.ListenAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.EventsPath, s.Gateway)
	server := &http.Server{Handler: mux}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.Queue.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.Store.RunSweeper(ctx, s.cfg.SweepInterval)
	}()
	go func() {
		defer wg.Done()
		s.pump(ctx)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("service: listening on %s%s", s.cfg.ListenAddr, s.cfg.EventsPath)
	err = server.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// Let the in-flight drain tick, if any, finish before declaring stopped.
	wg.Wait()
	log.Printf("service: stopped")
	return nil
}

// pump moves validated command events from the gateway's bounded channel
// into the durable queue.
func (s *Service) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.Gateway.Commands():
			if _, err := s.Queue.Enqueue(ev.SessionID, ev.Command, ev.Channel, ev.SenderID, ev.MessageID); err != nil {
				log.Printf("service: %v", err)
			}
		}
	}
}

// DispatchNotification creates a session and announces it on the channel.
// If delivery fails the just-created session is rolled back so no orphaned
// authorization lingers.
func (s *Service) DispatchNotification(meta session.Metadata) (*models.Session, error) {
	sess, err := s.Store.Create(meta)
	if err != nil {
		return nil, err
	}
	if err := s.Notifier.SendSessionCard(sess); err != nil {
		if delErr := s.Store.Delete(sess.ID); delErr != nil {
			log.Printf("service: failed to roll back session %s: %v", sess.ID, delErr)
		}
		return nil, fmt.Errorf("failed to dispatch notification: %w", err)
	}
	return sess, nil
}

func (s *Service) onViewDetails(in gateway.Interaction) {
	sess, err := s.Store.Get(in.SessionID)
	if err != nil {
		log.Printf("service: view details for unknown session %s", in.SessionID)
		return
	}
	msg := fmt.Sprintf("Session %s\nToken: %s\nWorking dir: %s\nCommands used: %d/%d\nExpires: %s",
		sess.ID, sess.Token, sess.WorkingDir, sess.CommandCount, sess.MaxCommands,
		humanize.Time(sess.ExpiresAt))
	if err := s.Notifier.SendText(msg); err != nil {
		log.Printf("service: %v", err)
	}
}

func (s *Service) onCopySessionID(in gateway.Interaction) {
	if err := s.Notifier.SendText("Session ID: " + in.SessionID); err != nil {
		log.Printf("service: %v", err)
	}
}

func (s *Service) onGotoTerminal(in gateway.Interaction) {
	msg := fmt.Sprintf("Attach with: tmux attach -t %s", s.cfg.TmuxSession)
	if err := s.Notifier.SendText(msg); err != nil {
		log.Printf("service: %v", err)
	}
}
