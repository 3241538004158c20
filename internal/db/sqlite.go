// internal/db/sqlite.go
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite 基于单文件sqlite的Db实现
type SQLite struct {
	path string
	conn *sql.DB
}

// NewSQLite 创建sqlite实例，path为数据库文件路径
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

// Init 打开数据库并建表
func (s *SQLite) Init() error {
	var err error
	s.conn, err = sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("打开数据库失败: %w", err)
	}

	// data_list 以zstd压缩的JSON BLOB存储
	_, err = s.conn.Exec(`
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS mcp_configs (
    id TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS llm_configs (
    id TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    is_default INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    tags TEXT NOT NULL DEFAULT '[]',
    data_list BLOB NOT NULL,
    total_items INTEGER NOT NULL,
    has_images INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("初始化数据库表失败: %w", err)
	}

	return nil
}

// Get 返回底层连接
func (s *SQLite) Get() *sql.DB {
	return s.conn
}

// Close 关闭数据库
func (s *SQLite) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Query 执行查询
func (s *SQLite) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.conn.Query(query, args...)
}

// QueryRow 执行单行查询
func (s *SQLite) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.conn.QueryRow(query, args...)
}

// Exec 执行写入
func (s *SQLite) Exec(query string, args ...interface{}) (sql.Result, error) {
	return s.conn.Exec(query, args...)
}
