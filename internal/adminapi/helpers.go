package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"gorm.io/gorm"

	"github.com/talkincode/wagate/internal/webserver"
)

type apiResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

type apiError struct {
	Code   string      `json:"code"`
	Msg    string      `json:"msg"`
	Detail interface{} `json:"detail,omitempty"`
}

type pagedResponse struct {
	Code     string      `json:"code"`
	Msg      string      `json:"msg"`
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, apiResponse{Code: "OK", Msg: "success", Data: data})
}

func fail(c echo.Context, status int, code, msg string, detail interface{}) error {
	return c.JSON(status, apiError{Code: code, Msg: msg, Detail: detail})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, pagedResponse{
		Code: "OK", Msg: "success",
		Data: data, Total: total, Page: page, PageSize: pageSize,
	})
}

// GetDB returns the request scoped gorm handle.
func GetDB(c echo.Context) *gorm.DB {
	return webserver.GetDB(c)
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return cast.ToInt64E(c.Param(name))
}

func parsePagination(c echo.Context) (page, pageSize int) {
	page = cast.ToInt(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}
	pageSize = cast.ToInt(c.QueryParam("page_size"))
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 20
	}
	return page, pageSize
}
