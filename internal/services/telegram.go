package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// TelegramService pushes back-office notifications to a Telegram chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	log         zerolog.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, log zerolog.Logger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		log:         log.With().Str("component", "telegram").Logger(),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		s.log.Debug().Msg("bot token not configured, skipping notification")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to send message")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warn().Int("status", resp.StatusCode).Msg("unexpected telegram status")
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SubmissionNotification describes a document pushed to the ERP.
type SubmissionNotification struct {
	DocumentType string
	DocumentID   string
	ClientName   string
	Username     string
	LineCount    int
	GrandTotal   float64
	Edited       bool
}

// NotifySubmission tells the admin chat about a submitted document.
func (s *TelegramService) NotifySubmission(n SubmissionNotification) error {
	if s.adminChatID == "" {
		s.log.Debug().Msg("admin chat not configured, skipping notification")
		return nil
	}

	kind := "Cotización"
	if n.DocumentType == "VTA" {
		kind = "Factura"
	}
	action := "creada"
	if n.Edited {
		action = "actualizada"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s %s</b> (%s)\n", kind, action, n.DocumentID)
	fmt.Fprintf(&b, "Cliente: %s\n", n.ClientName)
	fmt.Fprintf(&b, "Vendedor: %s\n", n.Username)
	fmt.Fprintf(&b, "Líneas: %d\n", n.LineCount)
	fmt.Fprintf(&b, "Total: %.2f", n.GrandTotal)

	return s.SendMessage(s.adminChatID, b.String())
}
