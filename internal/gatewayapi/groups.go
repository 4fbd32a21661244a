package gatewayapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/wagate/internal/webserver"
)

func postCreateGroup(c echo.Context) error {
	var payload struct {
		Subject      string   `json:"subject"`
		Participants []string `json:"participants"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if payload.Subject == "" || len(payload.Participants) == 0 {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "subject and participants are required", nil)
	}
	inst := webserver.GetInstance(c)
	chat, err := manager.CreateGroup(c.Request().Context(), inst.ID, payload.Subject, payload.Participants)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, chat)
}

func postAddParticipants(c echo.Context) error {
	var payload struct {
		Participants []string `json:"participants"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if len(payload.Participants) == 0 {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "participants are required", nil)
	}
	inst := webserver.GetInstance(c)
	if err := manager.AddGroupParticipants(c.Request().Context(), inst.ID,
		c.Param("jid"), payload.Participants); err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"added": len(payload.Participants)})
}

func postRemoveParticipants(c echo.Context) error {
	var payload struct {
		Participants []string `json:"participants"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if len(payload.Participants) == 0 {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "participants are required", nil)
	}
	inst := webserver.GetInstance(c)
	if err := manager.RemoveGroupParticipants(c.Request().Context(), inst.ID,
		c.Param("jid"), payload.Participants); err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"removed": len(payload.Participants)})
}

func postLeaveGroup(c echo.Context) error {
	inst := webserver.GetInstance(c)
	if err := manager.LeaveGroup(c.Request().Context(), inst.ID, c.Param("jid")); err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"left": true})
}

func getGroupInviteLink(c echo.Context) error {
	inst := webserver.GetInstance(c)
	link, err := manager.GroupInviteLink(c.Request().Context(), inst.ID, c.Param("jid"))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"invite_link": link})
}
