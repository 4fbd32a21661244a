package gatewayapi

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/wagate/internal/waclient"
	"github.com/talkincode/wagate/internal/webserver"
)

func postSendText(c echo.Context) error {
	var payload struct {
		To   string `json:"to"`
		Text string `json:"text"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if payload.To == "" || payload.Text == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "to and text are required", nil)
	}
	inst := webserver.GetInstance(c)
	msg, err := manager.SendText(c.Request().Context(), inst.ID, payload.To, payload.Text)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, msg)
}

func postSendMedia(c echo.Context) error {
	var payload struct {
		To       string `json:"to"`
		Url      string `json:"url"`
		Data     string `json:"data"` // base64
		MimeType string `json:"mime_type"`
		FileName string `json:"file_name"`
		Caption  string `json:"caption"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if payload.To == "" || (payload.Url == "" && payload.Data == "") {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "to and url or data are required", nil)
	}
	media := waclient.MediaSource{
		URL:      payload.Url,
		MimeType: payload.MimeType,
		FileName: payload.FileName,
	}
	if payload.Data != "" {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload.Data))
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_MEDIA", "data is not valid base64", nil)
		}
		media.Data = data
	}
	inst := webserver.GetInstance(c)
	msg, err := manager.SendMedia(c.Request().Context(), inst.ID, payload.To, media, payload.Caption)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, msg)
}

func postSendLocation(c echo.Context) error {
	var payload struct {
		To        string  `json:"to"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Label     string  `json:"label"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if payload.To == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "to is required", nil)
	}
	inst := webserver.GetInstance(c)
	msg, err := manager.SendLocation(c.Request().Context(), inst.ID,
		payload.To, payload.Latitude, payload.Longitude, payload.Label)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, msg)
}

func postSendContact(c echo.Context) error {
	var payload struct {
		To         string `json:"to"`
		ContactJid string `json:"contact_jid"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if payload.To == "" || payload.ContactJid == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "to and contact_jid are required", nil)
	}
	inst := webserver.GetInstance(c)
	msg, err := manager.SendContactCard(c.Request().Context(), inst.ID, payload.To, payload.ContactJid)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, msg)
}
