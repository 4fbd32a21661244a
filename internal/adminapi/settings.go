package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/webserver"
	"github.com/talkincode/wagate/pkg/common"
)

func registerSettingsRoutes() {
	webserver.ApiGET("/system/settings", listSettings)
	webserver.ApiPUT("/system/settings", saveSettings)
}

func listSettings(c echo.Context) error {
	base := GetDB(c).Model(&domain.SysConfig{})
	if t := c.QueryParam("type"); t != "" {
		base = base.Where("type = ?", t)
	}
	var settings []domain.SysConfig
	if err := base.Order("sort ASC").Find(&settings).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query settings", err.Error())
	}
	return ok(c, settings)
}

// saveSettings upserts by (type, name) so the frontend can submit the
// full form without tracking row ids.
func saveSettings(c echo.Context) error {
	var payload []struct {
		Type  string `json:"type"`
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse settings", nil)
	}
	db := GetDB(c)
	for _, item := range payload {
		if item.Type == "" || item.Name == "" {
			continue
		}
		var count int64
		db.Model(&domain.SysConfig{}).
			Where("type = ? AND name = ?", item.Type, item.Name).Count(&count)
		if count == 0 {
			db.Create(&domain.SysConfig{
				ID:        common.UUIDint64(),
				Type:      item.Type,
				Name:      item.Name,
				Value:     item.Value,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			})
			continue
		}
		db.Model(&domain.SysConfig{}).
			Where("type = ? AND name = ?", item.Type, item.Name).
			Updates(map[string]interface{}{"value": item.Value, "updated_at": time.Now()})
	}
	return ok(c, map[string]interface{}{"saved": len(payload)})
}
