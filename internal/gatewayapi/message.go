package gatewayapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/wagate/internal/webserver"
)

func postMessageReact(c echo.Context) error {
	var payload struct {
		ChatJid   string `json:"chat_jid"`
		MessageId string `json:"message_id"`
		Reaction  string `json:"reaction"` // empty string removes the reaction
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if payload.ChatJid == "" || payload.MessageId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "chat_jid and message_id are required", nil)
	}
	inst := webserver.GetInstance(c)
	if err := manager.React(c.Request().Context(), inst.ID,
		payload.ChatJid, payload.MessageId, payload.Reaction); err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"reacted": true})
}

func postMessageDelete(c echo.Context) error {
	var payload struct {
		ChatJid     string `json:"chat_jid"`
		MessageId   string `json:"message_id"`
		ForEveryone bool   `json:"for_everyone"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if payload.ChatJid == "" || payload.MessageId == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "chat_jid and message_id are required", nil)
	}
	inst := webserver.GetInstance(c)
	if err := manager.DeleteMessage(c.Request().Context(), inst.ID,
		payload.ChatJid, payload.MessageId, payload.ForEveryone); err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"deleted": true})
}

func postMessageRead(c echo.Context) error {
	var payload struct {
		ChatJid string `json:"chat_jid"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if payload.ChatJid == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "chat_jid is required", nil)
	}
	inst := webserver.GetInstance(c)
	if err := manager.MarkChatRead(c.Request().Context(), inst.ID, payload.ChatJid); err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"read": true})
}
