package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"

	"crashpit/internal/game"
)

type wsClientMessage struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount,omitempty"`
}

// gameWebSocketHandler attaches a viewer to a room: it receives every
// broadcast and can place bets and cash out over the same connection.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	participantID := conn.Query("participant_id", "anonymous")
	displayName := conn.Query("name", participantID)

	room, ok := s.room(conn.Query("room"))
	if !ok {
		conn.WriteMessage(websocket.TextMessage, mustMarshal(game.Envelope{
			Type: "error",
			Data: fiberMapError("no such room"),
		}))
		conn.Close()
		return
	}

	log.Printf("[WS] %s connected to room %s", participantID, room.Name)
	// All writes after registration go through the client's outbound queue;
	// writing to conn directly would race the hub's broadcasts.
	client := room.Hub.RegisterClient(conn, participantID)

	if snap := room.Scheduler.Snapshot(); snap != nil {
		client.Send(mustMarshal(game.Envelope{
			Type: "initial_state",
			Data: snap,
		}))
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] read error for %s: %v", participantID, err)
			room.Hub.UnregisterClient(conn)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg wsClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.Send(mustMarshal(game.Envelope{
				Type: "error",
				Data: fiberMapError("malformed message"),
			}))
			continue
		}

		switch msg.Type {
		case "place_bet":
			resp, _ := s.placeBet(context.Background(), room, betBody{
				ParticipantID: participantID,
				DisplayName:   displayName,
				Amount:        msg.Amount,
			})
			client.Send(mustMarshal(game.Envelope{
				Type: "bet_result",
				Data: resp,
			}))

		case "cash_out":
			resp := room.Scheduler.Cashout(game.CashoutRequest{ParticipantID: participantID})
			client.Send(mustMarshal(game.Envelope{
				Type: "cashout_result",
				Data: resp,
			}))

		case "ping":
			client.Send(mustMarshal(game.Envelope{Type: "pong"}))

		default:
			client.Send(mustMarshal(game.Envelope{
				Type: "error",
				Data: fiberMapError("unknown message type"),
			}))
		}
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WS] marshal error: %v", err)
		return []byte(`{"type":"error"}`)
	}
	return data
}

func fiberMapError(msg string) map[string]string {
	return map[string]string{"error": msg}
}
