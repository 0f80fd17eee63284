package dto

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// BindSessionID 从路径参数获取会话 ID
func BindSessionID(c *gin.Context) string {
	return c.Param("sid")
}

// BindCharacterName 从路径参数获取角色名称
func BindCharacterName(c *gin.Context) string {
	return strings.TrimSpace(c.Param("name"))
}

// BindFieldName 从路径参数获取字段名
func BindFieldName(c *gin.Context) string {
	return c.Param("field")
}

// BindChapterNumber 从路径参数获取章节编号，非正整数返回 false
func BindChapterNumber(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("num"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
