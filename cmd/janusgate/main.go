package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/nevern02/janusgate/api"
	"github.com/nevern02/janusgate/internal/config"
	"github.com/nevern02/janusgate/pkg/plugins/echotest"
	"github.com/nevern02/janusgate/pkg/plugins/streaming"
	"github.com/nevern02/janusgate/pkg/plugins/videoroom"
	"github.com/nevern02/janusgate/pkg/protocol"
	"github.com/nevern02/janusgate/pkg/session"
	"github.com/nevern02/janusgate/pkg/ui"
	rtc "github.com/nevern02/janusgate/pkg/webrtc"
)

const answerTimeout = 30 * time.Second

var (
	gatewayURL string
	verbose    bool
)

func main() {
	cmd := &cobra.Command{
		Use:   "janusgate",
		Short: "Signaling client for a Janus WebRTC gateway over HTTP long-poll",
	}

	cmd.PersistentFlags().StringVar(&gatewayURL, "url", "", "Gateway base URL (defaults to JANUS_URL)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(infoCmd(), roomsCmd(), streamsCmd(), echoCmd(), watchCmd(), monitorCmd())

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, *api.Client, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if gatewayURL != "" {
		cfg.GatewayURL = gatewayURL
	}
	if cfg.GatewayURL == "" {
		return nil, nil, fmt.Errorf("gateway URL is required: pass --url or set JANUS_URL")
	}

	client, err := api.NewClient(cfg.GatewayURL,
		api.WithHTTPTimeout(cfg.HTTPTimeout),
		api.WithPollTimeout(cfg.PollTimeout))
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

func newSession(ctx context.Context) (*session.Session, error) {
	cfg, client, err := setup()
	if err != nil {
		return nil, err
	}
	return session.Create(ctx, client,
		session.WithPollInterval(cfg.PollInterval))
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Probe the gateway's capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := setup()
			if err != nil {
				return err
			}

			info, err := client.Info(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("%s %s by %s\n", info.Name, info.VersionString, info.Author)
			fmt.Printf("data channels: %v, full trickle: %v\n", info.DataChannels, info.FullTrickle)

			names := make([]string, 0, len(info.Plugins))
			for name := range info.Plugins {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				p := info.Plugins[name]
				fmt.Printf("  %-40s %s (%s)\n", name, p.Name, p.VersionString)
			}
			return nil
		},
	}
}

func roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List the gateway's video rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Destroy(context.Background())

			vr, err := videoroom.Attach(cmd.Context(), sess)
			if err != nil {
				return err
			}
			defer vr.Detach(context.Background())

			ev, err := vr.List(cmd.Context())
			if err != nil {
				return err
			}
			return printPluginData(ev)
		},
	}
}

func streamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams",
		Short: "List the gateway's streaming mountpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Destroy(context.Background())

			st, err := streaming.Attach(cmd.Context(), sess)
			if err != nil {
				return err
			}
			defer st.Detach(context.Background())

			ev, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			return printPluginData(ev)
		},
	}
}

func echoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "echo",
		Short: "Run an echo-test negotiation against the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			sess, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Destroy(context.Background())

			ec, err := echotest.Attach(ctx, sess)
			if err != nil {
				return err
			}
			defer ec.Detach(context.Background())

			sub := ec.Handle().Events(32)
			defer sub.Close()

			peer, err := rtc.NewAPI().NewPeer(rtc.Config{})
			if err != nil {
				return err
			}
			defer peer.Close()

			if err := peer.AddRecvTransceivers(); err != nil {
				return err
			}
			wireTrickle(ctx, peer, ec.Handle())

			offer, err := peer.CreateOffer()
			if err != nil {
				return err
			}
			if _, err := ec.Start(ctx, offer, echotest.StartOptions{Audio: true, Video: true}); err != nil {
				return err
			}

			answerCtx, cancel := context.WithTimeout(ctx, answerTimeout)
			defer cancel()
			answer, err := sub.WaitForAnswer(answerCtx)
			if err != nil {
				return fmt.Errorf("waiting for echo answer: %w", err)
			}
			if err := peer.SetAnswer(answer); err != nil {
				return err
			}
			slog.Info("echo negotiation complete, waiting for events; ctrl-c to stop")

			return runEventLoop(ctx, sub, peer)
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <mountpoint-id>",
		Short: "Watch a streaming mountpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("mountpoint id %q: %w", args[0], err)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			sess, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Destroy(context.Background())

			st, err := streaming.Attach(ctx, sess)
			if err != nil {
				return err
			}
			defer st.Detach(context.Background())

			sub := st.Handle().Events(32)
			defer sub.Close()

			peer, err := rtc.NewAPI().NewPeer(rtc.Config{})
			if err != nil {
				return err
			}
			defer peer.Close()
			wireTrickle(ctx, peer, st.Handle())

			if _, err := st.Watch(ctx, id); err != nil {
				return err
			}

			offerCtx, cancel := context.WithTimeout(ctx, answerTimeout)
			defer cancel()
			offer, err := sub.WaitForOffer(offerCtx)
			if err != nil {
				return fmt.Errorf("waiting for mountpoint offer: %w", err)
			}

			answer, err := peer.Answer(offer)
			if err != nil {
				return err
			}
			if _, err := st.Start(ctx, answer); err != nil {
				return err
			}
			slog.Info("watch negotiation complete; ctrl-c to stop", "mountpoint", id)

			return runEventLoop(ctx, sub, peer)
		},
	}
}

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Tail a session's event stream in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Keep log output away from the TUI.
			f, _ := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if f != nil {
				defer f.Close()
				log.SetOutput(f)
				slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))
			}

			sess, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Destroy(context.Background())

			p := tea.NewProgram(ui.NewModel(sess))
			_, err = p.Run()
			return err
		},
	}
}

// wireTrickle forwards local ICE candidates to the gateway as they are
// gathered.
func wireTrickle(ctx context.Context, peer *rtc.Peer, h *session.Handle) {
	peer.OnICECandidate(
		func(c protocol.Candidate) {
			if err := h.Trickle(ctx, c); err != nil {
				slog.Warn("trickle failed", "error", err)
			}
		},
		func() {
			if err := h.TrickleCompleted(ctx); err != nil {
				slog.Warn("trickle completion failed", "error", err)
			}
		},
	)
}

// runEventLoop services post-negotiation events: remote trickle
// candidates, connectivity notifications and hangups.
func runEventLoop(ctx context.Context, sub *session.Subscription, peer *rtc.Peer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			switch {
			case ev.Janus == protocol.OpTrickle && ev.Candidate != nil:
				if err := peer.AddRemoteCandidate(*ev.Candidate); err != nil {
					slog.Warn("remote candidate rejected", "error", err)
				}
			case ev.Janus == protocol.OpWebRTCUp:
				slog.Info("webrtc connection established", "handle", ev.Sender)
			case ev.Janus == protocol.OpMedia:
				slog.Info("media state changed", "handle", ev.Sender)
			case ev.Janus == protocol.OpHangup:
				slog.Info("gateway hung up", "handle", ev.Sender)
				return nil
			}
		}
	}
}

func printPluginData(ev *protocol.Event) error {
	if ev.PluginData == nil {
		return fmt.Errorf("response carried no plugin data")
	}
	out, err := json.MarshalIndent(ev.PluginData.Data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
