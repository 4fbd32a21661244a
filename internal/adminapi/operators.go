package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/webserver"
	"github.com/talkincode/wagate/pkg/common"
)

func registerOperatorRoutes() {
	webserver.ApiGET("/system/operators", listOperators)
	webserver.ApiPOST("/system/operators", createOperator)
	webserver.ApiPUT("/system/operators/:id", updateOperator)
	webserver.ApiDELETE("/system/operators/:id", deleteOperator)
	webserver.ApiGET("/system/oprlogs", listOprLogs)
}

func listOperators(c echo.Context) error {
	page, pageSize := parsePagination(c)
	base := GetDB(c).Model(&domain.SysOpr{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operators", err.Error())
	}
	var oprs []domain.SysOpr
	if err := base.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&oprs).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operators", err.Error())
	}
	for i := range oprs {
		oprs[i].Password = ""
	}
	return paged(c, oprs, total, page, pageSize)
}

type operatorPayload struct {
	Realname string `json:"realname"`
	Mobile   string `json:"mobile"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Level    string `json:"level"`
	Status   string `json:"status"`
	Remark   string `json:"remark"`
}

func createOperator(c echo.Context) error {
	var payload operatorPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse operator parameters", nil)
	}
	username := strings.TrimSpace(payload.Username)
	if username == "" || payload.Password == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "username and password are required", nil)
	}
	var dup domain.SysOpr
	if err := GetDB(c).Where("username = ?", username).First(&dup).Error; err == nil {
		return fail(c, http.StatusConflict, "DUPLICATE_OPERATOR", "Operator with this username already exists", nil)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "HASH_ERROR", "Failed to hash password", err.Error())
	}
	level := payload.Level
	if level == "" {
		level = "opr"
	}
	opr := domain.SysOpr{
		ID:        common.UUIDint64(),
		Realname:  payload.Realname,
		Mobile:    payload.Mobile,
		Email:     payload.Email,
		Username:  username,
		Password:  string(hashed),
		Level:     level,
		Status:    common.ENABLED,
		Remark:    payload.Remark,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := GetDB(c).Create(&opr).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create operator", err.Error())
	}
	opr.Password = ""
	return ok(c, opr)
}

func updateOperator(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid operator ID", nil)
	}
	var payload operatorPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse operator parameters", nil)
	}
	var opr domain.SysOpr
	if err := GetDB(c).Where("id = ?", id).First(&opr).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "OPERATOR_NOT_FOUND", "Operator not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", err.Error())
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if payload.Realname != "" {
		updates["realname"] = payload.Realname
	}
	if payload.Mobile != "" {
		updates["mobile"] = payload.Mobile
	}
	if payload.Email != "" {
		updates["email"] = payload.Email
	}
	if payload.Level != "" {
		updates["level"] = payload.Level
	}
	if payload.Status != "" {
		updates["status"] = payload.Status
	}
	if payload.Remark != "" {
		updates["remark"] = payload.Remark
	}
	if payload.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "HASH_ERROR", "Failed to hash password", err.Error())
		}
		updates["password"] = string(hashed)
	}
	if err := GetDB(c).Model(&domain.SysOpr{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update operator", err.Error())
	}
	return ok(c, map[string]interface{}{"updated": true})
}

// deleteOperator refuses to remove the last super account so the
// management API can never lock itself out.
func deleteOperator(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid operator ID", nil)
	}
	var opr domain.SysOpr
	if err := GetDB(c).Where("id = ?", id).First(&opr).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "OPERATOR_NOT_FOUND", "Operator not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", err.Error())
	}
	if strings.EqualFold(opr.Level, "super") {
		var supers int64
		GetDB(c).Model(&domain.SysOpr{}).Where("level = ?", "super").Count(&supers)
		if supers <= 1 {
			return fail(c, http.StatusConflict, "LAST_SUPER", "Cannot delete the last super operator", nil)
		}
	}
	if err := GetDB(c).Where("id = ?", id).Delete(&domain.SysOpr{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete operator", err.Error())
	}
	return ok(c, map[string]interface{}{"deleted": true})
}

func listOprLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	base := GetDB(c).Model(&domain.SysOprLog{})
	if name := strings.TrimSpace(c.QueryParam("opr_name")); name != "" {
		base = base.Where("opr_name = ?", name)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator logs", err.Error())
	}
	var logs []domain.SysOprLog
	if err := base.Order("opt_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&logs).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator logs", err.Error())
	}
	return paged(c, logs, total, page, pageSize)
}
