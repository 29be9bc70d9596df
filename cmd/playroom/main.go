package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/playroom/internal/adapters/matchmaking"
	"github.com/dkeye/playroom/internal/adapters/transport"
	"github.com/dkeye/playroom/internal/config"
	"github.com/dkeye/playroom/internal/coordinator"
	"github.com/dkeye/playroom/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	flags := pflag.NewFlagSet("playroom", pflag.ExitOnError)
	host := flags.Bool("host", false, "host a new session")
	join := flags.String("join", "", "join the session with this id")
	list := flags.Bool("list", false, "list joinable sessions and exit")
	invite := flags.String("invite", "", "identity to invite once hosting")
	flags.String("hub_url", "http://localhost:8090", "matchmaking hub base URL")
	flags.String("listen_addr", "127.0.0.1:0", "transport listen address when hosting")
	flags.String("display_name", "guest", "display name")
	flags.String("session_name", "playroom", "session display name when hosting")
	flags.Int("max_members", 4, "session capacity when hosting")
	flags.String("log_level", "info", "log level")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	identity := domain.NewIdentity()

	mm := matchmaking.New(matchmaking.Config{
		BaseURL:     cfg.HubURL,
		Identity:    identity,
		DisplayName: cfg.DisplayName,
	})

	if *list {
		lobbies, err := mm.List(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("list sessions")
		}
		for _, l := range lobbies {
			fmt.Printf("%s  %-20s %d/%d\n", l.ID, l.Name, l.MemberCount, l.MaxMembers)
		}
		return
	}

	tp := transport.New(transport.Config{
		ListenAddr:  cfg.ListenAddr,
		Identity:    identity,
		DisplayName: cfg.DisplayName,
	})

	coord := coordinator.New(coordinator.Options{
		Identity:       identity,
		DisplayName:    cfg.DisplayName,
		SessionName:    cfg.SessionName,
		ListenAddr:     cfg.ListenAddr,
		ConnectTimeout: cfg.ConnectTimeout,
	}, mm, tp)

	unsubscribe := coord.Subscribe(func(n coordinator.Notice) {
		switch e := n.(type) {
		case coordinator.RoleAssigned:
			fmt.Printf("session %s: you are the %s\n", e.Session.ID, e.Role)
			if e.Role == domain.RoleHost && *invite != "" {
				// Notices fire from the coordinator loop; the invite HTTP
				// call must not stall it.
				go mm.Invite(e.Session.ID, domain.Identity(*invite))
			}
		case coordinator.MemberAdded:
			fmt.Printf("%s joined\n", e.Member.DisplayName)
		case coordinator.MemberRemoved:
			fmt.Printf("%s left\n", e.Identity)
		case coordinator.InviteReceived:
			fmt.Printf("invite from %s to session %s (rerun with --join %s)\n",
				e.From.DisplayName, e.SessionID, e.SessionID)
		case coordinator.HostFailed:
			log.Error().Err(e.Reason).Msg("hosting failed")
			cancel()
		case coordinator.JoinFailed:
			log.Error().Err(e.Reason).Msg("join failed")
			cancel()
		case coordinator.SessionEnded:
			fmt.Printf("session ended: %s\n", e.Reason)
			cancel()
		}
	})
	defer unsubscribe()

	go coord.Run(ctx)

	switch {
	case *host:
		coord.RequestHost(cfg.MaxMembers)
	case *join != "":
		coord.RequestJoin(domain.SessionID(*join))
	default:
		fmt.Println("nothing to do: pass --host, --join <id> or --list")
		return
	}

	<-ctx.Done()
	// Give the coordinator loop a moment to leave the session cleanly.
	time.Sleep(200 * time.Millisecond)
}
