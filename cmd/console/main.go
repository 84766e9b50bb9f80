// Command console is an interactive terminal client for the planning
// service: it joins a project, mirrors server state through the polling
// synchronizer, and sends each input line as a chat message.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"planhub/pkg/client"
	"planhub/pkg/domain"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8090", "planning service base URL")
	projectID := flag.String("project", "", "project to join (required)")
	userName := flag.String("user", "", "display name")
	flag.Parse()

	if strings.TrimSpace(*projectID) == "" {
		fmt.Fprintln(os.Stderr, "usage: console -project <id> [-user <name>] [-url <base>]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.NewClient(*baseURL)
	session, err := c.Join(ctx, *projectID, *userName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "join failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("joined %s as session %s\n", session.ProjectID(), session.ID())

	printed := make(map[string]struct{})
	sync := client.NewSynchronizer(client.SyncConfig{
		Client:    c,
		ProjectID: session.ProjectID(),
		OnChange: func(st client.State) {
			for _, msg := range st.Messages {
				if _, ok := printed[msg.Key()]; ok {
					continue
				}
				printed[msg.Key()] = struct{}{}
				if msg.Role == domain.RoleAssistant {
					fmt.Printf("\nassistant> %s\n> ", msg.Content)
				}
			}
		},
	})
	go sync.Run(ctx)

	fmt.Print("> ")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		if line == "/quit" {
			break
		}
		if line == "/doc" {
			doc, err := c.Document(ctx, session.ProjectID())
			if err != nil {
				fmt.Fprintf(os.Stderr, "document fetch failed: %v\n", err)
			} else {
				fmt.Println(doc)
			}
			fmt.Print("> ")
			continue
		}
		if _, err := session.Send(ctx, line); err != nil {
			if errors.Is(err, client.ErrSendInFlight) {
				fmt.Fprintln(os.Stderr, "previous message still sending")
			} else {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			}
		} else {
			sync.PollSoon()
		}
		fmt.Print("> ")
	}

	if err := session.Leave(context.Background()); err != nil {
		// Best-effort, mirrors the page-unload semantics of the web client.
		fmt.Fprintf(os.Stderr, "leave failed: %v\n", err)
	}
}
