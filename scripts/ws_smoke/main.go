// Command ws_smoke drives a live session server end to end: two clients
// join, run the ready handshake, exchange one app message, and report
// the transcript. Useful against a locally running server:
//
//	go run ./scripts/ws_smoke -addr ws://localhost:3001/ws
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/pairlink/pairlink-server/pkg/client"
	"github.com/pairlink/pairlink-server/pkg/contract"
)

func main() {
	addr := flag.String("addr", "ws://localhost:3001/ws", "WebSocket address")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	started := make(chan string, 2)

	newSmokeClient := func(name string) *client.Client {
		return client.New(client.Handlers{
			OnSessionJoin: func(w contract.Welcome) {
				fmt.Printf("[%s] joined as %s (number %d, phase %s)\n", name, w.ParticipantID, w.ParticipantNumber, w.SessionPhase)
			},
			OnOpponentJoined: func([]byte) {
				fmt.Printf("[%s] opponent joined\n", name)
			},
			OnSessionStart: func() {
				fmt.Printf("[%s] session started\n", name)
				started <- name
			},
			OnAppMessage: func(m contract.AppMessage) {
				fmt.Printf("[%s] app message %s: %s\n", name, m.Type, m.Raw)
			},
			OnError: func(msg string) {
				fmt.Printf("[%s] server error: %s\n", name, msg)
			},
		}, client.Options{})
	}

	a := newSmokeClient("a")
	b := newSmokeClient("b")

	if err := a.Connect(ctx, *addr); err != nil {
		log.Fatalf("dial a: %v", err)
	}
	defer a.Disconnect()
	if err := b.Connect(ctx, *addr); err != nil {
		log.Fatalf("dial b: %v", err)
	}
	defer b.Disconnect()

	// Give the welcomes a moment before readying up.
	time.Sleep(200 * time.Millisecond)
	a.SendReady()
	b.SendReady()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-ctx.Done():
			log.Fatal("session never started")
		}
	}

	a.SendAppMessage(map[string]any{"type": "hand_update", "x": 0.5, "y": 0.5})
	time.Sleep(200 * time.Millisecond)
	fmt.Println("smoke run complete")
}
