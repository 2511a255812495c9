package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
)

// Minimal interactive lobby client. Commands:
//
//	create <room>
//	join <room> <player>
//	start <room>
//	leave <room>
type envelope struct {
	MessageType string          `json:"messageType"`
	Payload     json.RawMessage `json:"payload"`
}

func send(c *websocket.Conn, msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{MessageType: msgType, Payload: raw})
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	addr := "localhost:8080"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop: print every inbound envelope.
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Printf("Read error: %v", err)
				return
			}
			var env envelope
			if err := json.Unmarshal(message, &env); err != nil {
				log.Printf("<- unparseable: %s", message)
				continue
			}
			log.Printf("<- %s %s", env.MessageType, env.Payload)
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "create":
				if len(fields) != 2 {
					fmt.Println("usage: create <room>")
					continue
				}
				err = send(c, "create_room", map[string]string{"roomName": fields[1]})
			case "join":
				if len(fields) != 3 {
					fmt.Println("usage: join <room> <player>")
					continue
				}
				err = send(c, "join_room", map[string]string{"roomName": fields[1], "playerName": fields[2]})
			case "start":
				if len(fields) != 2 {
					fmt.Println("usage: start <room>")
					continue
				}
				err = send(c, "start_game", map[string]string{"roomName": fields[1]})
			case "leave":
				if len(fields) != 2 {
					fmt.Println("usage: leave <room>")
					continue
				}
				err = send(c, "leave_room", map[string]string{"roomName": fields[1]})
			default:
				fmt.Println("commands: create, join, start, leave")
				continue
			}
			if err != nil {
				log.Printf("Send failed: %v", err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("Interrupted, closing connection")
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
