package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hns-alarm/internal/config"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// NewPostgresDB 创建PostgreSQL数据库连接
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// SQLExecutor 直连数据库执行查询，结果转成与查询服务相同的 JSON 行数组
type SQLExecutor struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLExecutor 创建数据库执行器
func NewSQLExecutor(db *sql.DB, logger *zap.Logger) *SQLExecutor {
	return &SQLExecutor{
		db:     db,
		logger: logger,
	}
}

// Execute 执行查询；写操作返回空数组
func (e *SQLExecutor) Execute(ctx context.Context, kind QueryKind, query string) ([]byte, error) {
	if kind != QuerySelect {
		result, err := e.db.ExecContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to execute %s: %w", strings.ToLower(string(kind)), err)
		}
		if n, err := result.RowsAffected(); err == nil {
			e.logger.Debug("Statement executed",
				zap.String("sql_type", string(kind)),
				zap.Int64("rows_affected", n),
			)
		}
		return []byte("[]"), nil
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rows: %w", err)
	}
	return data, nil
}

// scanRows 将结果集转换为 []map[string]any
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	dbTypes := make([]string, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			dbTypes[i] = ct.DatabaseTypeName()
		}
	}

	records := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			record[strings.ToLower(col)] = convertValue(values[i], dbTypes[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return records, nil
}

func convertValue(v any, dbType string) any {
	switch val := v.(type) {
	case []byte:
		switch dbType {
		case "NUMERIC", "DECIMAL":
			return json.Number(val)
		}
		return string(val)
	case time.Time:
		return val.Format("20060102150405")
	default:
		return val
	}
}
