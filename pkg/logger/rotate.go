package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 审计日志轮转的默认值：单文件 64MB，保留 10 份，最长 90 天。
const (
	defaultAuditMaxSizeMB  = 64
	defaultAuditMaxBackups = 10
	defaultAuditMaxAgeDays = 90
)

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// auditWriter 打开按大小轮转的审计文件，旧文件压缩保存。
func auditWriter(cfg AuditConfig) (*lumberjack.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    positiveOr(cfg.MaxSizeMB, defaultAuditMaxSizeMB),
		MaxBackups: positiveOr(cfg.MaxBackups, defaultAuditMaxBackups),
		MaxAge:     positiveOr(cfg.MaxAgeDays, defaultAuditMaxAgeDays),
		LocalTime:  true,
		Compress:   true,
	}, nil
}
