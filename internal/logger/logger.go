// Package logger 基于 zap 提供结构化日志器的构建。
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 根据运行环境和配置构建 zap 日志器。
// dev 环境默认使用 console 编码和彩色级别，prod 环境使用 json 编码。
// 每条日志自动携带服务名和版本字段，便于聚合检索。
func New(env, level, encoding, name, version string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "prod" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	switch encoding {
	case "json", "console":
		cfg.Encoding = encoding
	case "":
		// 保持环境默认编码
	default:
		return nil, fmt.Errorf("unknown log encoding %q", encoding)
	}

	// console 编码下彩色级别才有意义
	if cfg.Encoding == "json" {
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}

	lg, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return lg.With(
		zap.String("service", name),
		zap.String("version", version),
	), nil
}
