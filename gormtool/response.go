// gormtool\response.go
package gormtool

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// 分页默认值
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// 扩展的结构定义
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// Offset 当前页的偏移量
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type Response struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Page    *Pagination       `json:"page,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ErrInvalidID id 不是正整数
var ErrInvalidID = errors.New("invalid id")

// ParamID 读取路由参数 :id
func ParamID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return uint(id), nil
}

// ParamError 查询参数不合法, Param 为参数名
type ParamError struct {
	Param   string
	Message string
}

func (e *ParamError) Error() string {
	return e.Param + ": " + e.Message
}

// Paginate 读取 page/page_size; 两者都没有时返回 nil, 表示不分页
func Paginate(c *gin.Context) (*Pagination, error) {
	pageStr, hasPage := c.GetQuery("page")
	sizeStr, hasSize := c.GetQuery("page_size")
	if !hasPage && !hasSize {
		return nil, nil
	}

	p := &Pagination{Page: 1, PageSize: DefaultPageSize}
	if hasPage {
		n, err := strconv.Atoi(pageStr)
		if err != nil || n < 1 {
			return nil, &ParamError{Param: "page", Message: "Must be a positive integer."}
		}
		p.Page = n
	}
	if hasSize {
		n, err := strconv.Atoi(sizeStr)
		if err != nil || n < 1 {
			return nil, &ParamError{Param: "page_size", Message: "Must be a positive integer."}
		}
		p.PageSize = min(n, MaxPageSize)
	}
	return p, nil
}

// OK 写出成功响应
func OK(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// OKPage 写出带分页信息的列表
func OKPage(c *gin.Context, message string, data interface{}, page *Pagination) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
		Page:    page,
	})
}

// Fail 写出错误响应并终止后续 handler
func Fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// Invalid 写出字段级校验错误
func Invalid(c *gin.Context, fields map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Code:    http.StatusBadRequest,
		Message: "invalid request",
		Errors:  fields,
	})
}
