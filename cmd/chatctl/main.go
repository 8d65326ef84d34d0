package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
	"github.com/Nexta12/propertify-client-sub000/internal/config"
	"github.com/Nexta12/propertify-client-sub000/internal/identity"
	"github.com/Nexta12/propertify-client-sub000/internal/logging"
	"github.com/Nexta12/propertify-client-sub000/internal/session"
	"github.com/Nexta12/propertify-client-sub000/internal/store"
	"github.com/Nexta12/propertify-client-sub000/internal/transport"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot read config: %v\n", err)
		os.Exit(1)
	}
	c := api.New(cfg.APIBaseURL, cfg.AuthToken)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(sessionName, cfg, *jsonFlag)
	case "conversations":
		query := ""
		if len(args) >= 2 {
			query = args[1]
		}
		cmdConversations(ctx, c, query, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatctl messages <chat-id>")
			os.Exit(1)
		}
		cmdMessages(ctx, c, args[1], *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: chatctl send <chat-id> <text>")
			os.Exit(1)
		}
		cmdSend(ctx, c, cfg, args[1], strings.Join(args[2:], " "))
	case "end":
		cmdEnd(ctx, sessionName, cfg)
	case "notifications":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatctl notifications <list|seen <id>|delete <id>>")
			os.Exit(1)
		}
		cmdNotifications(ctx, c, args[1:], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                   Show session configuration and stored chat")
	fmt.Fprintln(os.Stderr, "  conversations [query]    List conversations (admin)")
	fmt.Fprintln(os.Stderr, "  messages <chat-id>       Print a conversation's history")
	fmt.Fprintln(os.Stderr, "  send <chat-id> <text>    Send a message")
	fmt.Fprintln(os.Stderr, "  end                      End the active chat and clear the stored id")
	fmt.Fprintln(os.Stderr, "  notifications list       List notifications")
	fmt.Fprintln(os.Stderr, "  notifications seen <id>  Mark a notification seen")
	fmt.Fprintln(os.Stderr, "  notifications delete <id>  Delete a notification")
}

func cmdStatus(sessionName string, cfg *config.Config, jsonOut bool) {
	chatID := ""
	if db, err := store.Open(session.DBPath(sessionName)); err == nil {
		if _, err := db.Migrate(); err == nil {
			chatID, _ = db.ChatID()
		}
		_ = db.Close()
	}

	if jsonOut {
		outputJSON(map[string]string{
			"session": sessionName,
			"api_url": cfg.APIBaseURL,
			"role":    cfg.Role,
			"chat_id": chatID,
		})
		return
	}
	fmt.Printf("Session: %s\n", sessionName)
	fmt.Printf("API:     %s\n", cfg.APIBaseURL)
	fmt.Printf("Role:    %s\n", cfg.Role)
	if chatID != "" {
		fmt.Printf("Chat:    %s\n", chatID)
	} else {
		fmt.Println("Chat:    none active")
	}
}

func cmdConversations(ctx context.Context, c *api.Client, query string, jsonOut bool) {
	convs, err := c.ListConversations(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(convs)
		return
	}
	for _, conv := range convs {
		name := conv.Visitor.FullName()
		if name == "" {
			name = "Anonymous"
		}
		fmt.Printf("%s  %-24s unread=%d  %s\n", conv.ID, name, conv.Unread, conv.LastMessage)
	}
}

func cmdMessages(ctx context.Context, c *api.Client, chatID string, jsonOut bool) {
	msgs, err := c.ListMessages(ctx, chatID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		name := m.Sender.FullName()
		if name == "" {
			name = string(m.SenderType)
		}
		ts := time.UnixMilli(m.CreatedAt).Format("2006-01-02 15:04")
		fmt.Printf("[%s] %s: %s\n", ts, name, m.Message)
	}
}

func cmdSend(ctx context.Context, c *api.Client, cfg *config.Config, chatID, text string) {
	msg := api.ChatMessage{
		ChatID:  chatID,
		Message: text,
		Sender: api.Sender{
			ID:        cfg.UserID,
			FirstName: cfg.FirstName,
			LastName:  cfg.LastName,
		},
		SenderType: identity.SenderType(cfg.Role),
	}
	saved, err := c.SendMessage(ctx, msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("sent: %s\n", saved.ID)
}

// cmdEnd tells the server the visitor went offline and clears the stored
// chat id. The emit is best effort; the local clear happens regardless.
func cmdEnd(ctx context.Context, sessionName string, cfg *config.Config) {
	if err := session.EnsureDir(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	db, err := store.Open(session.DBPath(sessionName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	chatID, err := db.ChatID()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if chatID == "" {
		fmt.Println("no active chat")
		return
	}

	logger, err := logging.New(session.LogPath(sessionName), sessionName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	b := bus.New()
	connected, unsub := b.Subscribe("transport.", 1)
	defer unsub()
	sock := transport.New(cfg.SocketURL, cfg.AuthToken, b, logger)
	sock.Start(ctx)
	select {
	case <-connected:
		sock.Emit(transport.EventSetUserOffline, transport.JoinChatPayload{ChatID: chatID})
	case <-time.After(5 * time.Second):
		fmt.Fprintln(os.Stderr, "warning: could not reach socket; clearing local state only")
	}
	sock.Stop()

	if err := db.ClearChatID(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ended: %s\n", chatID)
}

func cmdNotifications(ctx context.Context, c *api.Client, args []string, jsonOut bool) {
	switch args[0] {
	case "list":
		recs, err := c.ListNotifications(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if jsonOut {
			outputJSON(recs)
			return
		}
		for _, r := range recs {
			mark := "*"
			if r.IsSeen {
				mark = " "
			}
			fmt.Printf("%s %s  [%s]  %s\n", mark, r.ID, r.Type, r.Message)
		}
	case "seen":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatctl notifications seen <id>")
			os.Exit(1)
		}
		if err := c.MarkNotificationSeen(ctx, args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatctl notifications delete <id>")
			os.Exit(1)
		}
		if err := c.DeleteNotification(ctx, args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
