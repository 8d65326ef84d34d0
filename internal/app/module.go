// Package app composes the client: one fx module wiring the store,
// transport, reconcilers and TUI together for a single session.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
	"github.com/Nexta12/propertify-client-sub000/internal/config"
	"github.com/Nexta12/propertify-client-sub000/internal/identity"
	"github.com/Nexta12/propertify-client-sub000/internal/lock"
	"github.com/Nexta12/propertify-client-sub000/internal/logging"
	"github.com/Nexta12/propertify-client-sub000/internal/notify"
	"github.com/Nexta12/propertify-client-sub000/internal/outbox"
	"github.com/Nexta12/propertify-client-sub000/internal/room"
	"github.com/Nexta12/propertify-client-sub000/internal/roster"
	"github.com/Nexta12/propertify-client-sub000/internal/session"
	"github.com/Nexta12/propertify-client-sub000/internal/status"
	"github.com/Nexta12/propertify-client-sub000/internal/store"
	"github.com/Nexta12/propertify-client-sub000/internal/thread"
	"github.com/Nexta12/propertify-client-sub000/internal/transport"
	"github.com/Nexta12/propertify-client-sub000/internal/tui"
	"github.com/Nexta12/propertify-client-sub000/internal/typing"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Role        string // optional override for the configured role
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideIdentity,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideClient,
			provideSocket,
			provideThread,
			provideEngine,
			provideTracker,
			provideNotifier,
			provideNotifyStore,
			provideRoster,
			provideRoom,
			provideSender,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err == nil {
		return cfg, nil
	}
	// First run without a config file: point at a local gateway.
	return &config.Config{
		APIBaseURL: "http://localhost:8080/api",
		SocketURL:  "ws://localhost:8080/socket",
	}, nil
}

func provideIdentity(p Params, cfg *config.Config) *identity.Identity {
	role := cfg.Role
	if p.Role != "" {
		role = p.Role
	}
	if role == "" {
		role = string(identity.RoleVisitor)
	}
	return &identity.Identity{
		ID:        cfg.UserID,
		FirstName: cfg.FirstName,
		LastName:  cfg.LastName,
		Role:      identity.Role(role),
	}
}

// The TUI owns the terminal, so the logger writes to the session log file
// only.
func provideLogger(p Params) (*zap.Logger, error) {
	return logging.NewFileOnly(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config) *api.Client {
	return api.New(cfg.APIBaseURL, cfg.AuthToken)
}

func provideSocket(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *transport.Socket {
	return transport.New(cfg.SocketURL, cfg.AuthToken, b, logger)
}

func provideThread() *thread.Thread {
	return thread.New()
}

func provideEngine(client *api.Client, b *bus.Bus, th *thread.Thread, id *identity.Identity, logger *zap.Logger) *thread.Engine {
	return thread.NewEngine(client, b, th, *id, logger)
}

func provideTracker(b *bus.Bus) *typing.Tracker {
	return typing.NewTracker(b)
}

func provideNotifier(sock *transport.Socket, id *identity.Identity) *typing.Notifier {
	user := api.Sender{ID: id.ID, FirstName: id.FirstName, LastName: id.LastName}
	return typing.NewNotifier(sock, user)
}

func provideNotifyStore(client *api.Client, b *bus.Bus, logger *zap.Logger) *notify.Store {
	return notify.NewStore(client, b, logger)
}

func provideRoster(client *api.Client, b *bus.Bus, logger *zap.Logger) *roster.Roster {
	return roster.New(client, b, logger)
}

func provideRoom(sock *transport.Socket, db *store.DB, b *bus.Bus, id *identity.Identity, logger *zap.Logger) *room.Controller {
	return room.NewController(sock, db, b, id, logger)
}

func provideSender(client *api.Client, db *store.DB, th *thread.Thread, b *bus.Bus,
	sock *transport.Socket, n *typing.Notifier, tr *typing.Tracker,
	id *identity.Identity, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(client, db, th, b, sock, n, tr, id, logger)
}

func provideTUI(p Params, id *identity.Identity, b *bus.Bus, client *api.Client,
	rc *room.Controller, th *thread.Thread, sender *outbox.Sender,
	tr *typing.Tracker, n *typing.Notifier, ns *notify.Store, ro *roster.Roster) *tui.App {
	return tui.NewApp(tui.Deps{
		SessionName: p.SessionName,
		Identity:    id,
		Bus:         b,
		Client:      client,
		Room:        rc,
		Thread:      th,
		Sender:      sender,
		Tracker:     tr,
		Notifier:    n,
		Notify:      ns,
		Roster:      ro,
	})
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, sock *transport.Socket,
	engine *thread.Engine, tr *typing.Tracker, n *typing.Notifier, ns *notify.Store,
	ro *roster.Roster, rc *room.Controller, sender *outbox.Sender,
	machine *status.Machine, b *bus.Bus, id *identity.Identity, logger *zap.Logger) {
	var stopBridge func()

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ctx := context.Background()

			// Consumers first so the socket's earliest events land somewhere.
			engine.Start(ctx)
			tr.Start(ctx)
			ns.Start(ctx)
			ro.Start(ctx)
			rc.Start(ctx)
			sender.Start(ctx)
			stopBridge = bridgeStatus(b, machine, logger)

			_ = machine.Transition(status.Connecting)
			sock.Start(ctx)

			// A visitor resumes the conversation stored from the last run.
			if id.Role != identity.RoleAdmin {
				if chatID, err := db.ChatID(); err != nil {
					logger.Warn("failed to read stored chat id", zap.Error(err))
				} else if chatID != "" {
					logger.Info("resuming chat", zap.String("chat_id", chatID))
					n.SetChat(chatID)
					rc.SetChat(chatID)
				}
			}

			return nil
		},
		OnStop: func(_ context.Context) error {
			sender.Stop()
			rc.Stop()
			ro.Stop()
			ns.Stop()
			tr.Stop()
			engine.Stop()
			sock.Stop()
			if stopBridge != nil {
				stopBridge()
			}
			_ = machine.Transition(status.Closed)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}

// bridgeStatus drives the session state machine from transport lifecycle
// events.
func bridgeStatus(b *bus.Bus, machine *status.Machine, logger *zap.Logger) func() {
	ch, unsub := b.Subscribe("transport.", 8)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case evt := <-ch:
				var err error
				switch evt.Kind {
				case bus.TransportConnected:
					err = machine.Transition(status.Online)
				case bus.TransportDisconnected:
					err = machine.Transition(status.Reconnecting)
				}
				if err != nil {
					logger.Debug("status transition skipped", zap.Error(err))
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		unsub()
		close(done)
	}
}
