package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/wamanager"
	"github.com/talkincode/wagate/internal/webserver"
	"github.com/talkincode/wagate/pkg/common"
)

func registerInstanceRoutes() {
	webserver.ApiGET("/instances", listInstances)
	webserver.ApiGET("/instances/:id", getInstance)
	webserver.ApiPOST("/instances", createInstance)
	webserver.ApiPUT("/instances/:id", updateInstance)
	webserver.ApiDELETE("/instances/:id", deleteInstance)
	webserver.ApiPOST("/instances/:id/token", regenerateInstanceToken)
	webserver.ApiPUT("/instances/:id/webhook", updateInstanceWebhook)

	webserver.ApiGET("/instances/:id/status", getInstanceSession)
	webserver.ApiPOST("/instances/:id/connect", connectInstance)
	webserver.ApiPOST("/instances/:id/disconnect", disconnectInstance)
	webserver.ApiPOST("/instances/:id/logout", logoutInstance)
	webserver.ApiGET("/instances/:id/events", listInstanceEvents)
	webserver.ApiGET("/instances/:id/messages", listInstanceMessages)
}

func listInstances(c echo.Context) error {
	page, pageSize := parsePagination(c)
	base := GetDB(c).Model(&domain.WaInstance{})
	if kw := strings.TrimSpace(c.QueryParam("keyword")); kw != "" {
		base = base.Where("name LIKE ? OR account_number LIKE ?", "%"+kw+"%", "%"+kw+"%")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query instances", err.Error())
	}
	var instances []domain.WaInstance
	if err := base.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&instances).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query instances", err.Error())
	}
	return paged(c, instances, total, page, pageSize)
}

func getInstance(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}
	var inst domain.WaInstance
	if err := GetDB(c).Where("id = ?", id).First(&inst).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "INSTANCE_NOT_FOUND", "Instance not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query instance", err.Error())
	}
	return ok(c, inst)
}

type instancePayload struct {
	Name       string `json:"name"`
	WebhookUrl string `json:"webhook_url"`
	Events     string `json:"events"`
	Remark     string `json:"remark"`
}

// createInstance provisions a new instance row. The gateway token is
// generated server side and returned exactly once here.
func createInstance(c echo.Context) error {
	var payload instancePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse instance parameters", nil)
	}
	if strings.TrimSpace(payload.Name) == "" {
		return fail(c, http.StatusBadRequest, "MISSING_NAME", "Instance name is required", nil)
	}

	inst := domain.WaInstance{
		ID:         common.UUIDint64(),
		Name:       strings.TrimSpace(payload.Name),
		Token:      common.RandomToken(32),
		Status:     domain.InstanceDisconnected,
		WebhookUrl: payload.WebhookUrl,
		Events:     payload.Events,
		Remark:     payload.Remark,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := GetDB(c).Create(&inst).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create instance", err.Error())
	}
	zap.L().Info("adminapi: instance created",
		zap.Int64("instance_id", inst.ID), zap.String("name", inst.Name))
	return ok(c, inst)
}

func updateInstance(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}
	var payload instancePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse instance parameters", nil)
	}
	var inst domain.WaInstance
	if err := GetDB(c).Where("id = ?", id).First(&inst).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "INSTANCE_NOT_FOUND", "Instance not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query instance", err.Error())
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if strings.TrimSpace(payload.Name) != "" {
		updates["name"] = strings.TrimSpace(payload.Name)
	}
	updates["webhook_url"] = payload.WebhookUrl
	updates["events"] = payload.Events
	updates["remark"] = payload.Remark
	if err := GetDB(c).Model(&domain.WaInstance{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update instance", err.Error())
	}
	return ok(c, map[string]interface{}{"updated": true})
}

// deleteInstance tears down any live session, removes credential
// material and the journal, then drops the row. Missing pieces are
// tolerated so a retried delete still succeeds.
func deleteInstance(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}

	warn, err := manager.Delete(c.Request().Context(), id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TEARDOWN_ERROR", "Failed to tear down session", err.Error())
	}
	if err := GetDB(c).Where("id = ?", id).Delete(&domain.WaInstance{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete instance", err.Error())
	}
	GetDB(c).Where("instance_id = ?", id).Delete(&domain.WaMessageLog{})

	resp := map[string]interface{}{"deleted": true}
	if warn != nil {
		resp["warning"] = warn.Error()
	}
	zap.L().Info("adminapi: instance deleted", zap.Int64("instance_id", id))
	return ok(c, resp)
}

func regenerateInstanceToken(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}
	token := common.RandomToken(32)
	res := GetDB(c).Model(&domain.WaInstance{}).Where("id = ?", id).
		Updates(map[string]interface{}{"token": token, "updated_at": time.Now()})
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to rotate token", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "INSTANCE_NOT_FOUND", "Instance not found", nil)
	}
	return ok(c, map[string]interface{}{"token": token})
}

func updateInstanceWebhook(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}
	var payload struct {
		WebhookUrl string `json:"webhook_url"`
		Events     string `json:"events"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse webhook parameters", nil)
	}
	res := GetDB(c).Model(&domain.WaInstance{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"webhook_url": payload.WebhookUrl,
			"events":      payload.Events,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update webhook", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "INSTANCE_NOT_FOUND", "Instance not found", nil)
	}
	return ok(c, map[string]interface{}{"updated": true})
}

func getInstanceSession(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}
	snap, err := manager.Status(id)
	if errors.Is(err, wamanager.ErrNotFound) {
		snap = wamanager.Snapshot{InstanceID: id, Status: wamanager.StatusDisconnected}
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "SESSION_ERROR", "Failed to read session", err.Error())
	}
	return ok(c, snap)
}

func connectInstance(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}
	snap, err := manager.Connect(c.Request().Context(), id)
	if errors.Is(err, wamanager.ErrNotFound) {
		return fail(c, http.StatusNotFound, "INSTANCE_NOT_FOUND", "Instance not found", nil)
	} else if err != nil {
		return fail(c, http.StatusBadGateway, "CONNECT_FAILED", "Failed to start session", err.Error())
	}
	return ok(c, snap)
}

func disconnectInstance(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}
	snap, warn, err := manager.Disconnect(c.Request().Context(), id)
	if errors.Is(err, wamanager.ErrNotFound) {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "No session registered for instance", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DISCONNECT_FAILED", "Failed to disconnect session", err.Error())
	}
	resp := map[string]interface{}{"snapshot": snap}
	if warn != nil {
		resp["warning"] = warn.Error()
	}
	return ok(c, resp)
}

func logoutInstance(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}
	warn, err := manager.Logout(c.Request().Context(), id)
	if errors.Is(err, wamanager.ErrNotFound) {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "No session registered for instance", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to log out session", err.Error())
	}
	resp := map[string]interface{}{"logged_out": true}
	if warn != nil {
		resp["warning"] = warn.Error()
	}
	return ok(c, resp)
}

func listInstanceEvents(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}
	limit := cast.ToInt(c.QueryParam("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	events, err := manager.RecentEvents(id, limit)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "JOURNAL_ERROR", "Failed to read events", err.Error())
	}
	return ok(c, events)
}

func listInstanceMessages(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID", nil)
	}
	page, pageSize := parsePagination(c)
	base := GetDB(c).Model(&domain.WaMessageLog{}).Where("instance_id = ?", id)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query messages", err.Error())
	}
	var messages []domain.WaMessageLog
	if err := base.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&messages).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query messages", err.Error())
	}
	return paged(c, messages, total, page, pageSize)
}
