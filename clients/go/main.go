// Command line client for the conference relay.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/YashSaini213/virtual-conference-translator/clients/go/relayclient"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("RELAY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("RELAY_TOKEN")

	client := relayclient.NewClient(baseURL, token)
	ctx := context.Background()
	cmd := os.Args[1]

	switch cmd {
	case "sessions":
		sessions, err := client.ListSessions(ctx)
		exitOnError(err)
		for _, s := range sessions {
			private := ""
			if s.IsPrivate {
				private = " [private]"
			}
			fmt.Printf("  %s  %s (%d events)%s\n", s.ID, s.Title, s.EventCount, private)
		}

	case "create":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: relay create <title> [key]")
			os.Exit(1)
		}
		key := ""
		if len(os.Args) > 3 {
			key = os.Args[3]
		}
		sess, err := client.CreateSession(ctx, os.Args[2], key)
		exitOnError(err)
		fmt.Println(sess.ID)

	case "end":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: relay end <session-id>")
			os.Exit(1)
		}
		exitOnError(client.EndSession(ctx, os.Args[2]))

	case "transcript":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: relay transcript <session-id>")
			os.Exit(1)
		}
		entries, err := client.GetTranscript(ctx, os.Args[2], 50)
		exitOnError(err)
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			ts := time.UnixMilli(e.Timestamp).Format("15:04:05")
			speaker := e.Speaker
			if speaker == "" {
				speaker = e.SpeakerID
			}
			fmt.Printf("[%s] %s: %s\n", ts, speaker, e.Text)
		}

	case "summarize":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: relay summarize <session-id>")
			os.Exit(1)
		}
		text, err := client.Summarize(ctx, os.Args[2])
		exitOnError(err)
		fmt.Println(text)

	case "listen":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: relay listen <session-id> [key]")
			os.Exit(1)
		}
		key := ""
		if len(os.Args) > 3 {
			key = os.Args[3]
		}
		conn, err := client.Dial(ctx)
		exitOnError(err)
		defer conn.Close()
		exitOnError(conn.Join(os.Args[2], key))

		for {
			ev, err := conn.Next()
			exitOnError(err)
			switch ev.Type {
			case "caption-update", "chat-message", "summary-update":
				ts := time.UnixMilli(ev.Timestamp).Format("15:04:05")
				fmt.Printf("[%s] %s %s: %s\n", ts, ev.Type, ev.Sender.UserID, ev.Payload)
			case "error":
				fmt.Fprintf(os.Stderr, "server error: %s\n", ev.Payload)
			}
		}

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: relay <command>

Commands:
  sessions                      List active sessions
  create <title> [key]          Create a session (key makes it private)
  end <session-id>              End a session (host only)
  transcript <session-id>       Print the session transcript
  summarize <session-id>        Generate a summary (host only)
  listen <session-id> [key]     Stream live events to stdout

Environment:
  RELAY_URL    Server base URL (default http://localhost:8080)
  RELAY_TOKEN  Bearer token`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
