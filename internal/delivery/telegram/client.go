// internal/delivery/telegram/client.go
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrNaPaSS/menutrade/pkg/logger"
)

// Client - минимальный клиент Telegram Bot API поверх HTTP
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient создает клиент для данного токена
func NewClient(token string) *Client {
	return &Client{
		// Таймаут должен переживать long polling
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    fmt.Sprintf("https://api.telegram.org/bot%s/", token),
	}
}

// Update - обновление от Telegram
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message - входящее сообщение
type Message struct {
	MessageID int64   `json:"message_id"`
	From      *TgUser `json:"from,omitempty"`
	Chat      Chat    `json:"chat"`
	Date      int64   `json:"date"`
	Text      string  `json:"text"`
}

// TgUser - отправитель сообщения
type TgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
	IsBot     bool   `json:"is_bot"`
}

// Chat - чат сообщения
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// outgoingMessage - тело запроса sendMessage
type outgoingMessage struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendMessage отправляет текстовое сообщение в чат
func (c *Client) SendMessage(chatID int64, text string) error {
	return c.call("sendMessage", outgoingMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}, nil)
}

// GetUpdates делает long polling запрос getUpdates
func (c *Client) GetUpdates(offset int64, timeout int) ([]Update, error) {
	params := map[string]interface{}{
		"offset":          offset,
		"timeout":         timeout,
		"limit":           100,
		"allowed_updates": []string{"message"},
	}

	var updates []Update
	if err := c.call("getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// GetMe проверяет токен
func (c *Client) GetMe() error {
	return c.call("getMe", map[string]interface{}{}, nil)
}

// call выполняет метод Bot API и декодирует result в dest (если dest != nil)
func (c *Client) call(method string, payload interface{}, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("сериализация запроса %s: %w", method, err)
	}

	resp, err := c.httpClient.Post(c.baseURL+method, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("запрос %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("чтение ответа %s: %w", method, err)
	}

	var apiResp struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("разбор ответа %s: %w", method, err)
	}

	if !apiResp.OK {
		logger.Error("❌ Telegram API %s: %s", method, apiResp.Description)
		return fmt.Errorf("telegram API %s: %s", method, apiResp.Description)
	}

	if dest != nil {
		if err := json.Unmarshal(apiResp.Result, dest); err != nil {
			return fmt.Errorf("разбор result %s: %w", method, err)
		}
	}
	return nil
}
