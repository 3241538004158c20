// internal/db/db.go
package db

import "database/sql"

// Db 持久化存储的访问接口
// 控制台的实体（MCP配置、LLM配置、数据文档）都经由它读写
type Db interface {
	Init() error

	Get() *sql.DB
	Close() error

	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}
