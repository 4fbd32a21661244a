package gatewayapi

import (
	"github.com/labstack/echo/v4"

	"github.com/talkincode/wagate/internal/webserver"
)

func listChats(c echo.Context) error {
	inst := webserver.GetInstance(c)
	chats, err := manager.ListChats(c.Request().Context(), inst.ID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, chats)
}

func getChat(c echo.Context) error {
	inst := webserver.GetInstance(c)
	chat, err := manager.GetChat(c.Request().Context(), inst.ID, c.Param("jid"))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, chat)
}

func listContacts(c echo.Context) error {
	inst := webserver.GetInstance(c)
	contacts, err := manager.ListContacts(c.Request().Context(), inst.ID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, contacts)
}

func getContact(c echo.Context) error {
	inst := webserver.GetInstance(c)
	contact, err := manager.GetContact(c.Request().Context(), inst.ID, c.Param("jid"))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, contact)
}

func getProfilePicture(c echo.Context) error {
	inst := webserver.GetInstance(c)
	url, err := manager.ProfilePicture(c.Request().Context(), inst.ID, c.Param("jid"))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"url": url})
}
