package mango

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// WebsocketURL returns the ws:// address of the live channel of a collection.
func (s *Server) WebsocketURL(collection string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + Prefix + "/websocket/" + collection
}

// Subscribers returns how many live connections are open for a collection.
func (s *Server) Subscribers(collection string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.subscribers[collection])
}

// Notify pushes a notification frame to every subscriber of the collection.
func (s *Server) Notify(collection, notificationType string, object interface{}) {
	frame := map[string]interface{}{
		"messageType":      "NOTIFICATION",
		"notificationType": notificationType,
		"object":           object,
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	alive := s.subscribers[collection][:0]
	for _, conn := range s.subscribers[collection] {
		if err := conn.WriteJSON(frame); err != nil {
			conn.Close()
			continue
		}
		alive = append(alive, conn)
	}
	s.subscribers[collection] = alive
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request, collection string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mutex.Lock()
	s.subscribers[collection] = append(s.subscribers[collection], conn)
	s.mutex.Unlock()

	// drain until the client goes away so close frames are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.unsubscribe(collection, conn)
				return
			}
		}
	}()
}

func (s *Server) unsubscribe(collection string, conn *websocket.Conn) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	conns := s.subscribers[collection]
	for i, c := range conns {
		if c == conn {
			s.subscribers[collection] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	conn.Close()
}
