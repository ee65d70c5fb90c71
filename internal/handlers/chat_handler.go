package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/divyanshu1906/FreelancingFuel/internal/models"
	"github.com/divyanshu1906/FreelancingFuel/internal/realtime"
	chatsvc "github.com/divyanshu1906/FreelancingFuel/internal/services/chat"
	"github.com/divyanshu1906/FreelancingFuel/internal/utils"
)

type ChatHandler struct {
	DB        *gorm.DB
	Chats     *chatsvc.ChatService
	Hub       *realtime.Hub
	RDB       *redis.Client
	JWTSecret string
}

func NewChatHandler(db *gorm.DB, chats *chatsvc.ChatService, hub *realtime.Hub, rdb *redis.Client, jwtSecret string) *ChatHandler {
	return &ChatHandler{DB: db, Chats: chats, Hub: hub, RDB: rdb, JWTSecret: jwtSecret}
}

type MessageResponse struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	Sender *SenderMini `json:"sender,omitempty"`
}

type SenderMini struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func toMessageResponse(m *models.Message) MessageResponse {
	resp := MessageResponse{
		ID:        m.ID.String(),
		ChatID:    m.ChatID.String(),
		SenderID:  m.SenderID.String(),
		Type:      m.Type,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
	if m.Sender != nil {
		resp.Sender = &SenderMini{
			ID:   m.Sender.ID.String(),
			Name: m.Sender.Name,
			Role: string(m.Sender.Role),
		}
	}
	return resp
}

func chatOut(ch *models.Chat) fiber.Map {
	out := fiber.Map{
		"id":            ch.ID,
		"project_id":    ch.ProjectID,
		"client_id":     ch.ClientID,
		"freelancer_id": ch.FreelancerID,
		"created_at":    ch.CreatedAt,
	}
	if ch.Project != nil {
		out["project"] = fiber.Map{
			"id":    ch.Project.ID,
			"title": ch.Project.Title,
		}
	}
	if ch.Client != nil {
		out["client"] = fiber.Map{
			"id":    ch.Client.ID,
			"name":  ch.Client.Name,
			"email": ch.Client.Email,
		}
	}
	if ch.Freelancer != nil {
		out["freelancer"] = fiber.Map{
			"id":    ch.Freelancer.ID,
			"name":  ch.Freelancer.Name,
			"email": ch.Freelancer.Email,
		}
	}
	return out
}

func (h *ChatHandler) isParticipant(ch *models.Chat, userID uuid.UUID) bool {
	return ch.ClientID == userID || ch.FreelancerID == userID
}

type CreateChatReq struct {
	ProjectID string `json:"project_id"`
}

// Create materializes the chat for a project. The chat normally already
// exists because acceptance creates it server-side; this endpoint covers
// projects assigned before that behavior existed.
func (h *ChatHandler) Create(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req CreateChatReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	projectUUID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Valid project ID is required",
		})
	}

	ch, err := h.ensureChat(c, projectUUID, userUUID)
	if ch == nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": chatOut(ch)})
}

// ListMine returns all chats the caller participates in.
func (h *ChatHandler) ListMine(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var chats []models.Chat
	if err := h.DB.
		Preload("Project").
		Preload("Client").
		Preload("Freelancer").
		Where("client_id = ? OR freelancer_id = ?", userUUID, userUUID).
		Order("updated_at DESC").
		Find(&chats).Error; err != nil {
		log.Error().Err(err).Msg("list chats failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	out := make([]fiber.Map, 0, len(chats))
	for i := range chats {
		out = append(out, chatOut(&chats[i]))
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// GetMessages returns the chat history oldest-first.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	chatUUID, err := uuid.Parse(c.Params("chatId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid chat ID",
		})
	}

	var ch models.Chat
	if err := h.DB.First(&ch, "id = ?", chatUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Chat not found",
		})
	}

	if !h.isParticipant(&ch, userUUID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Access denied",
		})
	}

	messages, err := h.loadMessages(ch.ID)
	if err != nil {
		log.Error().Err(err).Msg("fetch messages failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	return c.JSON(fiber.Map{"success": true, "data": messages})
}

type SendMessageReq struct {
	Text string `json:"text"`
}

// SendMessage appends a message to the chat and pushes it to both
// participants over the websocket hub and the Redis notification channel.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	chatUUID, err := uuid.Parse(c.Params("chatId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid chat ID",
		})
	}

	var ch models.Chat
	if err := h.DB.First(&ch, "id = ?", chatUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Chat not found",
		})
	}

	if !h.isParticipant(&ch, userUUID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Access denied",
		})
	}

	return h.appendMessage(c, &ch, userUUID)
}

// GetByProject returns the project's chat plus its messages, creating the
// chat lazily when the project already has an assignee.
func (h *ChatHandler) GetByProject(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	projectUUID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid project ID",
		})
	}

	ch, err := h.ensureChat(c, projectUUID, userUUID)
	if ch == nil {
		return err
	}

	messages, err := h.loadMessages(ch.ID)
	if err != nil {
		log.Error().Err(err).Msg("fetch messages failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"data":     chatOut(ch),
		"messages": messages,
	})
}

// SendByProject resolves the chat from the project and appends the message.
func (h *ChatHandler) SendByProject(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	projectUUID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid project ID",
		})
	}

	ch, err := h.ensureChat(c, projectUUID, userUUID)
	if ch == nil {
		return err
	}

	return h.appendMessage(c, ch, userUUID)
}

func (h *ChatHandler) ensureChat(c *fiber.Ctx, projectUUID, userUUID uuid.UUID) (*models.Chat, error) {
	ch, err := h.Chats.EnsureForProject(h.DB, projectUUID)
	if err != nil {
		switch {
		case errors.Is(err, chatsvc.ErrProjectNotFound):
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Project not found",
			})
		case errors.Is(err, chatsvc.ErrNoAssignee):
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Chat not found: project has no assigned freelancer",
			})
		default:
			log.Error().Err(err).Msg("ensure chat failed")
			return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Internal server error",
			})
		}
	}

	if !h.isParticipant(ch, userUUID) {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Access denied",
		})
	}

	return ch, nil
}

func (h *ChatHandler) loadMessages(chatID uuid.UUID) ([]MessageResponse, error) {
	var messages []models.Message
	if err := h.DB.
		Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}

	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toMessageResponse(&messages[i]))
	}
	return out, nil
}

func (h *ChatHandler) appendMessage(c *fiber.Ctx, ch *models.Chat, senderID uuid.UUID) error {
	var req SendMessageReq
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Text is required",
		})
	}

	msg := models.Message{
		ChatID:   ch.ID,
		SenderID: senderID,
		Type:     "text",
		Text:     req.Text,
	}

	if err := h.DB.Create(&msg).Error; err != nil {
		log.Error().Err(err).Msg("create message failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	// Join sender fields for the response payload.
	_ = h.DB.Preload("Sender").First(&msg, "id = ?", msg.ID).Error

	resp := toMessageResponse(&msg)

	h.Hub.SendToChat(ch.ClientID, ch.FreelancerID, fiber.Map{
		"type":    "new_message",
		"message": resp,
	})

	recipientID := ch.ClientID
	if senderID == ch.ClientID {
		recipientID = ch.FreelancerID
	}
	h.publishNotification(c.Context(), recipientID, fiber.Map{
		"type":      "chat_message",
		"chat_id":   ch.ID.String(),
		"sender_id": senderID.String(),
		"text":      req.Text,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    resp,
	})
}

func (h *ChatHandler) publishNotification(ctx context.Context, recipientID uuid.UUID, payload fiber.Map) {
	b, _ := json.Marshal(payload)
	if err := h.RDB.Publish(ctx, "notifications:"+recipientID.String(), b).Err(); err != nil {
		log.Warn().Err(err).Msg("publish chat notification failed")
	}
}

// WebSocketHandler upgrades the connection and registers it with the hub.
// Authentication is via a token query parameter since websocket clients
// cannot set the Authorization header.
func (h *ChatHandler) WebSocketHandler(c *websocket.Conn) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.Close()
		return
	}

	claims, err := utils.ParseJWT(h.JWTSecret, tokenStr)
	if err != nil {
		log.Warn().Err(err).Msg("ws: invalid token")
		c.Close()
		return
	}

	userUUID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.Close()
		return
	}

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userUUID,
		Conn:   realtime.NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer h.Hub.UnregisterClient(client)

	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	// Read loop keeps the connection alive; clients only send ping frames.
	for {
		var payload map[string]interface{}
		if err := c.ReadJSON(&payload); err != nil {
			break
		}
	}
}
