package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// paginate 分页 scope，pageSize 非正数时不分页。
func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if pageSize <= 0 {
			return db
		}
		if page < 1 {
			page = 1
		}
		return db.Limit(pageSize).Offset((page - 1) * pageSize)
	}
}

// isPostgres 判断当前连接是否为 postgres，其余一律按 sqlite 语法处理。
func isPostgres(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	switch strings.ToLower(db.Dialector.Name()) {
	case "postgres", "postgresql":
		return true
	}
	return false
}

// jsonTextExpr 取 JSON 列中某个键的文本值。
func jsonTextExpr(db *gorm.DB, column, key string) string {
	if isPostgres(db) {
		return fmt.Sprintf("(%s::jsonb ->> '%s')", column, key)
	}
	// 键名以下划线开头，sqlite 路径需加引号
	return fmt.Sprintf(`json_extract(%s, '$."%s"')`, column, key)
}
