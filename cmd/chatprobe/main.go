// Package main provides a load and smoke testing tool for the chat
// WebSocket server. It mints its own JWTs, so it needs the server's
// signing secret.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Metrics tracks the probe results.
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsSent           int64
	EventsReceived       int64
	Errors               int64
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:8480", "API server host")
	secret := flag.String("secret", "your-secret-key-change-in-production", "JWT signing secret")
	clients := flag.Int("clients", 25, "Number of concurrent clients")
	chatID := flag.String("chat", "", "Chat ID for join/typing events (optional)")
	duration := flag.Duration("duration", 30*time.Second, "Probe duration")
	flag.Parse()

	log.Printf("Starting chat WebSocket probe")
	log.Printf("Target: %s", *host)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, *secret, *chatID, i, stopChan, &wg)
		// Stagger connections so presence broadcasts do not all land at once.
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case <-time.After(*duration):
		log.Println("Probe duration reached")
	case <-interrupt:
		log.Println("Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func mintToken(secret string, userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func runClient(host, secret, chatID string, id int, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	userID := uuid.NewString()
	token, err := mintToken(secret, userID)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		log.Printf("client %d: token minting failed: %v", id, err)
		return
	}

	u := url.URL{
		Scheme:   "ws",
		Host:     host,
		Path:     "/api/ws/chat",
		RawQuery: "token=" + url.QueryEscape(token),
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		log.Printf("client %d: dial failed: %v", id, err)
		return
	}
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)
	defer func() { _ = conn.Close() }()

	// Reader
	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)
		}
	}()

	if chatID != "" {
		sendEvent(conn, "joinChat", map[string]string{"chatId": chatID})
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	typing := false
	for {
		select {
		case <-stopChan:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if chatID == "" {
				continue
			}
			typing = !typing
			evType := "typing"
			if !typing {
				evType = "stopTyping"
			}
			sendEvent(conn, evType, map[string]string{"chatId": chatID})
		}
	}
}

func sendEvent(conn *websocket.Conn, evType string, payload any) {
	ev := map[string]any{"type": evType, "payload": payload}
	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	atomic.AddInt64(&metrics.EventsSent, 1)
}

func printMetrics() {
	fmt.Println()
	fmt.Println("=== Probe Results ===")
	fmt.Printf("Connections attempted: %d\n", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	fmt.Printf("Connections succeeded: %d\n", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	fmt.Printf("Connections failed:    %d\n", atomic.LoadInt64(&metrics.ConnectionsFailed))
	fmt.Printf("Events sent:           %d\n", atomic.LoadInt64(&metrics.EventsSent))
	fmt.Printf("Events received:       %d\n", atomic.LoadInt64(&metrics.EventsReceived))
	fmt.Printf("Errors:                %d\n", atomic.LoadInt64(&metrics.Errors))
}
