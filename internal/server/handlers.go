package server

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"crashpit/internal/game"
	"crashpit/internal/settlement"
)

const defaultRoom = "main"

func (s *FiberServer) room(name string) (*game.Room, bool) {
	if name == "" {
		name = defaultRoom
	}
	return s.rooms.Get(name)
}

func (s *FiberServer) gameStateHandler(c *fiber.Ctx) error {
	room, ok := s.room(c.Query("room"))
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "no such room"})
	}
	snap := room.Scheduler.Snapshot()
	if snap == nil {
		return c.Status(404).JSON(fiber.Map{"error": "no active round"})
	}
	return c.JSON(snap)
}

func (s *FiberServer) gameHistoryHandler(c *fiber.Ctx) error {
	n, _ := strconv.Atoi(c.Query("limit", "20"))
	records, err := s.cache.RecentCrashes(c.Context(), n)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "history unavailable"})
	}
	return c.JSON(fiber.Map{"rounds": records})
}

type betBody struct {
	ParticipantID string  `json:"participant_id"`
	DisplayName   string  `json:"display_name"`
	Amount        float64 `json:"amount"`
	Room          string  `json:"room"`
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var body betBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.ParticipantID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "participant_id is required"})
	}
	if body.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "amount must be positive"})
	}

	room, ok := s.room(body.Room)
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "no such room"})
	}

	resp, status := s.placeBet(c.Context(), room, body)
	return c.Status(status).JSON(resp)
}

// placeBet reserves the stake on the ledger before the bet enters the round
// engine, and refunds it when the round rejects the bet. Shared by the REST
// and websocket paths.
func (s *FiberServer) placeBet(ctx context.Context, room *game.Room, body betBody) (game.BetResponse, int) {
	if err := s.gateway.Reserve(ctx, body.ParticipantID, body.Amount); err != nil {
		if errors.Is(err, settlement.ErrInsufficientFunds) {
			return game.BetResponse{Reason: "InsufficientFunds", Message: "insufficient funds"}, 400
		}
		log.Printf("[SERVER] stake reservation failed for %s: %v", body.ParticipantID, err)
		return game.BetResponse{Reason: game.ReasonInternal, Message: "ledger unavailable"}, 500
	}

	resp := room.Scheduler.PlaceBet(game.BetRequest{
		ParticipantID: body.ParticipantID,
		DisplayName:   body.DisplayName,
		Amount:        body.Amount,
	})
	if !resp.Success {
		if err := s.gateway.Refund(ctx, body.ParticipantID, body.Amount); err != nil {
			// The stake is already off the account, so the refund cannot be
			// dropped. Hand it to the settlement worker, which retries until
			// the ledger accepts; the fresh id keeps the refund's dedup key
			// clear of the round's own settlement.
			log.Printf("[SERVER] refund for %s failed, queued for retry: %v", body.ParticipantID, err)
			s.gateway.Submit(game.Outcome{
				Kind:          game.OutcomeRefund,
				RoundID:       "refund-" + uuid.NewString(),
				ParticipantID: body.ParticipantID,
				DisplayName:   body.DisplayName,
				Stake:         body.Amount,
			})
		}
		return resp, 400
	}
	return resp, 200
}

type cashoutBody struct {
	ParticipantID string `json:"participant_id"`
	Room          string `json:"room"`
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	var body cashoutBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.ParticipantID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "participant_id is required"})
	}

	room, ok := s.room(body.Room)
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "no such room"})
	}

	resp := room.Scheduler.Cashout(game.CashoutRequest{ParticipantID: body.ParticipantID})
	if !resp.Success {
		return c.Status(400).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) balanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user id is required"})
	}

	balance, err := s.ledger.Balance(c.Context(), userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "ledger unavailable"})
	}
	return c.JSON(fiber.Map{"participant_id": userID, "balance": balance})
}

func (s *FiberServer) depositHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user id is required"})
	}

	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "amount must be positive"})
	}

	if err := s.ledger.Credit(c.Context(), userID, body.Amount); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "deposit failed"})
	}

	balance, err := s.ledger.Balance(c.Context(), userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "ledger unavailable"})
	}
	return c.JSON(fiber.Map{"participant_id": userID, "balance": balance})
}

func (s *FiberServer) userHistoryHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user id is required"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	entries, err := s.ledger.History(c.Context(), userID, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "ledger unavailable"})
	}
	return c.JSON(fiber.Map{"participant_id": userID, "history": entries})
}
