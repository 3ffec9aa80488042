package dbmo

import "time"

// 占位符相关常量
const (
	// DefaultIdentPattern 占位符名称的默认语法：字母开头，后接字母、数字或下划线
	DefaultIdentPattern = `[A-Za-z][A-Za-z0-9_]*`

	// DefaultParseCacheSize 默认缓存的占位符解析结果条数
	DefaultParseCacheSize = 512
)

// 日志相关常量
const (
	// LogFileMaxSizeMB 日志文件达到该大小（MB）后轮转
	LogFileMaxSizeMB = 2

	// LogFileMaxBackups 保留的历史日志文件数
	LogFileMaxBackups = 10
)

// 缓存相关常量
const (
	// DefaultCacheCleanupInterval 本地缓存清理过期项的间隔
	DefaultCacheCleanupInterval = time.Minute
)

// 连接监控相关常量
const (
	// DefaultMonitorInterval 连接健康检查的默认间隔
	DefaultMonitorInterval = 30 * time.Second

	// MonitorPingTimeout 单次健康检查 Ping 的超时时间
	MonitorPingTimeout = 3 * time.Second
)
