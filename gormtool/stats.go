// gormtool\stats.go
package gormtool

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// DatabaseStats 数据库统计信息结构体
type DatabaseStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
	MaxIdleClosed      int64         `json:"max_idle_closed"`
	MaxLifetimeClosed  int64         `json:"max_lifetime_closed"`
}

// Health 返回数据库连接池和 Redis 的状态; 数据库不可用时返回 503
func (t *CRUDTool) Health(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	data := gin.H{}

	if sqlDB, err := t.DB.DB(); err == nil {
		stats := sqlDB.Stats()
		data["database"] = DatabaseStats{
			MaxOpenConnections: stats.MaxOpenConnections,
			OpenConnections:    stats.OpenConnections,
			InUse:              stats.InUse,
			Idle:               stats.Idle,
			WaitCount:          stats.WaitCount,
			WaitDuration:       stats.WaitDuration,
			MaxIdleClosed:      stats.MaxIdleClosed,
			MaxLifetimeClosed:  stats.MaxLifetimeClosed,
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			data["database_error"] = err.Error()
		}
	} else {
		status = http.StatusServiceUnavailable
		data["database_error"] = err.Error()
	}

	data["redis"] = t.getRedisStats(ctx)

	message := "ok"
	if status != http.StatusOK {
		message = "unavailable"
	}
	OK(c, status, message, data)
}

// getRedisStats 获取 Redis 统计信息
func (t *CRUDTool) getRedisStats(ctx context.Context) interface{} {
	if t.RedisClient == nil {
		return "disabled"
	}

	info, err := t.RedisClient.Info(ctx, "server", "clients", "memory").Result()
	if err != nil {
		return "unavailable: " + err.Error()
	}

	// 解析 Redis 信息为更结构化的格式
	redisStats := make(map[string]string)
	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			redisStats[parts[0]] = parts[1]
		}
	}

	return redisStats
}
