package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/CrowderSoup/flow-board/database"
	"github.com/CrowderSoup/flow-board/kanban"
	"github.com/CrowderSoup/flow-board/services"
	"github.com/spf13/cobra"
)

// identityStateKey caches the last verified identity so the client can work
// while the server is unreachable.
const identityStateKey = "identity"

// client is one CLI invocation's session against the configured server.
type client struct {
	cfg     *services.Config
	db      *sql.DB
	session *kanban.Session
	channel *kanban.WSChannel
	logger  *log.Logger

	unlisten func()
}

func openClient(ctx context.Context) (*client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, errors.New(`no token configured: run "flowboard login EMAIL" and pass --token or set FLOWBOARD_TOKEN`)
	}

	out := services.LogWriter(cfg)
	logger := log.New(out, "[client] ", log.LstdFlags)

	db, err := database.InitDB(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}
	state := database.NewStateService(db)

	httpClient := &http.Client{Timeout: cfg.RemoteTimeout}
	remote := kanban.NewHTTPRemote(cfg.ServerURL, cfg.Token, httpClient)

	monitor := kanban.NewMonitor(strings.TrimRight(cfg.ServerURL, "/")+"/api/health", cfg.ProbeInterval, httpClient, log.New(out, "[network] ", log.LstdFlags))
	online := monitor.Probe(ctx)

	identity, err := resolveIdentity(ctx, remote, state, online)
	if err != nil {
		db.Close()
		return nil, err
	}

	var channel *kanban.WSChannel
	if online {
		channel, err = kanban.DialWSChannel(ctx, kanban.WebSocketURL(cfg.ServerURL), cfg.Token, log.New(out, "[broadcast] ", log.LstdFlags))
		if err != nil {
			logger.Printf("WARNING: Cross-tab relay unavailable: %v", err)
			channel = nil
		}
	}

	sessionCfg := kanban.Config{
		Remote:           remote,
		Storage:          state,
		Network:          monitor,
		Identity:         identity,
		LogOutput:        out,
		RequeueOnFailure: cfg.RequeueOnFailure,
		OnWriteFailure: func(we *kanban.WriteError) {
			fmt.Fprintf(os.Stderr, "warning: %v\n", we)
		},
	}
	// A nil *WSChannel must not become a non-nil Channel
	if channel != nil {
		sessionCfg.Channel = channel
	}

	session, err := kanban.NewSession(sessionCfg)
	if err != nil {
		if channel != nil {
			channel.Close()
		}
		db.Close()
		return nil, err
	}

	return &client{
		cfg:      cfg,
		db:       db,
		session:  session,
		channel:  channel,
		logger:   logger,
		unlisten: session.Broadcaster.Listen(session.Dispatch),
	}, nil
}

// resolveIdentity asks the server who the token belongs to, falling back to
// the cached identity while offline.
func resolveIdentity(ctx context.Context, remote *kanban.HTTPRemote, state *database.StateService, online bool) (kanban.Identity, error) {
	var identity kanban.Identity
	if online {
		id, err := remote.WhoAmI(ctx)
		if err == nil {
			if err := state.Save(identityStateKey, id); err != nil {
				return kanban.Identity{}, err
			}
			return id, nil
		}
		if errors.Is(err, kanban.ErrUnauthorized) {
			return kanban.Identity{}, fmt.Errorf("token rejected by server: %w", err)
		}
	}

	ok, err := state.Load(identityStateKey, &identity)
	if err != nil {
		return kanban.Identity{}, err
	}
	if !ok {
		return kanban.Identity{}, errors.New("server unreachable and no cached identity: connect once to sign in")
	}
	return identity, nil
}

// refresh replays queued writes, then reloads every board the user can see.
func (c *client) refresh(ctx context.Context) error {
	if !c.session.Online() {
		return nil
	}
	c.flush(ctx)
	return c.session.SyncAll(ctx)
}

func (c *client) flush(ctx context.Context) kanban.FlushResult {
	if !c.session.Online() {
		return kanban.FlushResult{}
	}
	return c.session.Queue.Flush(ctx)
}

func (c *client) Close() error {
	c.unlisten()
	if c.channel != nil {
		c.channel.Close()
	}
	return c.db.Close()
}

// runSession wraps a command that reads or mutates the stores: it refreshes
// local state, runs fn, then replays whatever fn queued.
func runSession(fn func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		c, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.refresh(ctx); err != nil {
			c.logger.Printf("WARNING: Failed to refresh from server: %v", err)
		}

		if err := fn(ctx, cmd, c.session, args); err != nil {
			return err
		}

		result := c.flush(ctx)
		reportPending(cmd.ErrOrStderr(), c.session, result)
		return nil
	}
}

func reportPending(w io.Writer, s *kanban.Session, result kanban.FlushResult) {
	if n := s.Queue.Len(); n > 0 {
		state := "offline"
		if s.Online() {
			state = fmt.Sprintf("%d failed to replay", result.Failed)
		}
		fmt.Fprintf(w, "%d change(s) queued (%s)\n", n, state)
	}
}
