// Command main is an interactive terminal client for the Majlis chat.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"majlis/internal/notifications"
	"majlis/pkg/client"
)

func main() {
	host := flag.String("host", "http://localhost:8080", "API server base URL")
	email := flag.String("email", "", "User email")
	password := flag.String("password", "", "User password")
	username := flag.String("register", "", "Register a new account with this username instead of logging in")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	session := client.NewSession(*host, client.NewMemoryTokenStore(""), client.Handlers{
		OnMessage: func(p notifications.MessagePayload) {
			fmt.Printf("[%s] %s: %s\n", p.CreatedAt.Format("15:04"), p.Username, p.Content)
		},
		OnTyping: func(p notifications.PresencePayload) {
			fmt.Printf("… %s is typing\n", p.Username)
		},
		OnBuzz: func(p notifications.PresencePayload) {
			fmt.Printf("⚡ BUZZ from %s\n", p.Username)
		},
		OnRadioUpdated: func(p notifications.RadioPayload) {
			fmt.Printf("📻 now playing %s (v%d)\n", p.YoutubeID, p.Version)
		},
		OnRadioConflict: func(p notifications.RadioPayload) {
			fmt.Printf("📻 your pick lost; current station is %s (v%d)\n", p.YoutubeID, p.Version)
		},
		OnError: func(p notifications.ErrorPayload) {
			fmt.Printf("server error: %s\n", p.Message)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if *username != "" {
		err = session.Register(ctx, *username, *email, *password)
	} else {
		err = session.Login(ctx, *email, *password)
	}
	if err != nil {
		log.Fatalf("❌ Authentication failed: %v", err)
	}
	fmt.Printf("✅ Signed in as %s\n", session.User().Username)

	if err := session.Connect(context.Background()); err != nil {
		log.Fatalf("❌ Connection failed: %v", err)
	}
	defer func() { _ = session.Close() }()

	fmt.Println("Connected to global_chat. Type a message, /buzz, /radio <youtube_id>, or /quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/buzz":
			if err := session.SendBuzz(); err != nil {
				fmt.Printf("buzz failed: %v\n", err)
			}
		case strings.HasPrefix(line, "/radio "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/radio "))
			if err := changeStation(*host, session, id); err != nil {
				fmt.Printf("radio change failed: %v\n", err)
			}
		default:
			if err := session.SendMessage(line); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
}

// changeStation reads the current radio version and proposes the new station
// against it, so a losing race surfaces as a radio_conflict event.
func changeStation(host string, session *client.Session, youtubeID string) error {
	resp, err := http.Get(host + "/api/radio/state")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var state struct {
		Version uint64 `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return err
	}
	return session.UpdateRadio(youtubeID, state.Version)
}
