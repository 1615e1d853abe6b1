package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/scan_synchronizer/internal/config"
	"github.com/relabs-tech/scan_synchronizer/internal/timesync"
)

var upgrader = websocket.Upgrader{
	// Status page is served from the same process; no origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statusHub fans the latest diagnostics snapshot out to websocket
// clients and remembers it for the polling endpoint.
type statusHub struct {
	mu         sync.RWMutex
	last       timesync.Status
	haveStatus bool
	clients    map[*websocket.Conn]bool
}

func newStatusHub() *statusHub {
	return &statusHub{clients: make(map[*websocket.Conn]bool)}
}

func (h *statusHub) update(st timesync.Status) {
	h.mu.Lock()
	h.last = st
	h.haveStatus = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteJSON(st); err != nil {
			h.remove(c)
		}
	}
}

func (h *statusHub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *statusHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Close()
}

// RunWeb serves the latest sync diagnostics over HTTP and streams
// updates to websocket clients as rounds close.
func RunWeb() error {
	cfg := config.Get()
	hub := newStatusHub()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to diagnostics and fan out
	token := client.Subscribe(cfg.TopicDiagnostics, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st timesync.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("web: status unmarshal error: %v", err)
			return
		}
		hub.update(st)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicDiagnostics)

	// 3) JSON API endpoint: latest status
	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		hub.mu.RLock()
		defer hub.mu.RUnlock()

		if !hub.haveStatus {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.last); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Websocket endpoint: live status pushes
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		hub.add(conn)

		hub.mu.RLock()
		if hub.haveStatus {
			if err := conn.WriteJSON(hub.last); err != nil {
				log.Printf("web: websocket write error: %v", err)
			}
		}
		hub.mu.RUnlock()

		// Drain client frames until the connection drops.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					hub.remove(conn)
					return
				}
			}
		}()
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
