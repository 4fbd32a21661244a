// Package gatewayapi exposes the per-instance gateway surface. Every
// route here runs behind the instance token middleware, so handlers
// always operate on the instance bound to the request token.
package gatewayapi

import (
	"github.com/talkincode/wagate/internal/wamanager"
	"github.com/talkincode/wagate/internal/webserver"
)

var manager *wamanager.Manager

// InitRouter binds the session manager and registers all gateway
// routes. Call after webserver.Init.
func InitRouter(m *wamanager.Manager) {
	manager = m

	webserver.GwGET("/instance/status", getInstanceStatus)
	webserver.GwGET("/instance/qr", getInstanceQR)
	webserver.GwPOST("/instance/connect", postInstanceConnect)
	webserver.GwPOST("/instance/disconnect", postInstanceDisconnect)
	webserver.GwPOST("/instance/logout", postInstanceLogout)
	webserver.GwGET("/instance/events", listInstanceEvents)

	webserver.GwPOST("/send/text", postSendText)
	webserver.GwPOST("/send/media", postSendMedia)
	webserver.GwPOST("/send/location", postSendLocation)
	webserver.GwPOST("/send/contact", postSendContact)

	webserver.GwPOST("/message/react", postMessageReact)
	webserver.GwPOST("/message/delete", postMessageDelete)
	webserver.GwPOST("/message/read", postMessageRead)

	webserver.GwGET("/chats", listChats)
	webserver.GwGET("/chats/:jid", getChat)
	webserver.GwGET("/contacts", listContacts)
	webserver.GwGET("/contacts/:jid", getContact)
	webserver.GwGET("/contacts/:jid/picture", getProfilePicture)

	webserver.GwPOST("/groups", postCreateGroup)
	webserver.GwPOST("/groups/:jid/participants/add", postAddParticipants)
	webserver.GwPOST("/groups/:jid/participants/remove", postRemoveParticipants)
	webserver.GwPOST("/groups/:jid/leave", postLeaveGroup)
	webserver.GwGET("/groups/:jid/invite", getGroupInviteLink)
}
