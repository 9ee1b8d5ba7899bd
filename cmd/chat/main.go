package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/config"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/logger"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/service/directory"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/session"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/transport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	room := flag.String("room", "", "room id to join")
	user := flag.String("user", "", "student id to join as")
	socketURL := flag.String("server", cfg.Client.SocketURL, "room socket URL")
	apiURL := flag.String("api", cfg.Client.APIBaseURL, "data API base URL")
	timeout := flag.Duration("timeout", 15*time.Second, "request timeout")
	flag.Parse()

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: true})

	ctrl := session.NewController(session.Config{
		RoomID:         *room,
		SelfID:         *user,
		Dial:           session.WebSocketDialer(*socketURL, transport.DefaultOptions(), log),
		Directory:      directory.New(*apiURL, *timeout),
		RequestTimeout: *timeout,
		Logger:         log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		if errors.Is(err, session.ErrMissingSessionContext) {
			fmt.Fprintln(os.Stderr, "both -room and -user are required (the login flow normally supplies them)")
		} else {
			fmt.Fprintf(os.Stderr, "could not enter room: %v\n", err)
		}
		os.Exit(1)
	}

	go render(ctrl, *user)

	fmt.Println("commands: /more (older history), /who (roster), /gpt <question>, /w <user> <text>, /quit")
	prompt(ctrl)
}

// render prints messages as the session discovers them.
func render(ctrl *session.Controller, selfID string) {
	printed := make(map[string]struct{})
	wasActive := false

	for range ctrl.Updates() {
		snap := ctrl.Snapshot()

		if snap.Phase == session.PhaseActive && !wasActive {
			wasActive = true
			title := snap.Title
			if title == "" {
				title = snap.RoomID
			}
			fmt.Printf("-- %s --\n", title)
		}

		for _, msg := range snap.Messages {
			key := msg.Key() + msg.Message
			if _, done := printed[key]; done {
				continue
			}
			printed[key] = struct{}{}
			fmt.Println(format(msg, selfID))
		}

		if snap.Phase == session.PhaseFaulted {
			if errors.Is(snap.Err, session.ErrMissingSessionContext) {
				fmt.Fprintln(os.Stderr, "session context lost, please log in again")
			} else {
				fmt.Fprintf(os.Stderr, "connection lost (%v); re-enter the room to continue\n", snap.Err)
			}
			os.Exit(1)
		}
	}
}

func format(msg chat.Message, selfID string) string {
	verdict := session.Classify(msg, selfID)

	if verdict.IsSystem {
		return fmt.Sprintf("* %s", msg.Message)
	}

	name := msg.Name
	if name == "" {
		name = msg.SenderID
	}
	if verdict.IsFromSelf {
		name = "you"
	}

	if verdict.IsPublic {
		return fmt.Sprintf("<%s> %s", name, msg.Message)
	}

	badge := fmt.Sprintf("whisper to %s", verdict.Addressee)
	if verdict.IsWhisperToSelf {
		badge = "whisper to you"
	}
	return fmt.Sprintf("<%s> [%s] %s", name, badge, msg.Message)
}

func prompt(ctrl *session.Controller) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			ctrl.Leave()
			return

		case line == "/more":
			if err := ctrl.LoadOlder(); err != nil {
				fmt.Fprintf(os.Stderr, "load more: %v\n", err)
			}

		case line == "/who":
			for _, p := range ctrl.Snapshot().Participants {
				fmt.Printf("  %s\n", p.DisplayName())
			}

		case strings.HasPrefix(line, "/gpt "):
			send(ctrl, strings.TrimPrefix(line, "/gpt "), chat.SenderGPT)

		case strings.HasPrefix(line, "/w "):
			rest := strings.TrimPrefix(line, "/w ")
			target, text, ok := strings.Cut(rest, " ")
			if !ok {
				fmt.Fprintln(os.Stderr, "usage: /w <user> <text>")
				continue
			}
			send(ctrl, text, target)

		default:
			send(ctrl, line, "")
		}
	}

	ctrl.Leave()
}

func send(ctrl *session.Controller, text, directedTo string) {
	if err := ctrl.SendMessage(text, directedTo); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
	}
}
