package gatewayapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"

	"github.com/talkincode/wagate/internal/wamanager"
	"github.com/talkincode/wagate/internal/webserver"
)

// getInstanceStatus serves the live snapshot. An instance without a
// registered handle is simply disconnected; the persisted account
// identity is still reported so clients can show who was linked.
func getInstanceStatus(c echo.Context) error {
	inst := webserver.GetInstance(c)
	snap, err := manager.Status(inst.ID)
	if errors.Is(err, wamanager.ErrNotFound) {
		snap = wamanager.Snapshot{
			InstanceID:     inst.ID,
			Status:         wamanager.StatusDisconnected,
			AccountNumber:  inst.AccountNumber,
			AccountName:    inst.AccountName,
			AccountPicture: inst.AccountPicture,
		}
	} else if err != nil {
		return failErr(c, err)
	}
	return ok(c, snap)
}

// getInstanceQR returns the pending pairing challenge. Outside the
// AwaitingScan state there is no challenge to return.
func getInstanceQR(c echo.Context) error {
	inst := webserver.GetInstance(c)
	snap, err := manager.Status(inst.ID)
	if err != nil {
		return failErr(c, err)
	}
	if snap.Status != wamanager.StatusAwaitingScan {
		return fail(c, http.StatusNotFound, "QR_NOT_AVAILABLE",
			"No pairing challenge pending", map[string]interface{}{"status": snap.Status})
	}
	return ok(c, map[string]interface{}{
		"qr":           snap.QR,
		"qr_rendered":  snap.QRRendered,
		"qr_issued_at": snap.QRIssuedAt,
	})
}

func postInstanceConnect(c echo.Context) error {
	inst := webserver.GetInstance(c)
	snap, err := manager.Connect(c.Request().Context(), inst.ID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, snap)
}

func postInstanceDisconnect(c echo.Context) error {
	inst := webserver.GetInstance(c)
	snap, warn, err := manager.Disconnect(c.Request().Context(), inst.ID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, warningPayload(map[string]interface{}{"snapshot": snap}, warn))
}

func postInstanceLogout(c echo.Context) error {
	inst := webserver.GetInstance(c)
	warn, err := manager.Logout(c.Request().Context(), inst.ID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, warningPayload(map[string]interface{}{"logged_out": true}, warn))
}

// listInstanceEvents replays the most recent journaled envelopes,
// oldest first.
func listInstanceEvents(c echo.Context) error {
	inst := webserver.GetInstance(c)
	limit := cast.ToInt(c.QueryParam("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	events, err := manager.RecentEvents(inst.ID, limit)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, events)
}
