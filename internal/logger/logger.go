// Copyright 2022 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package logger builds the zap logger of the development server and provides
an HTTP request logging middleware.

All log output goes to stderr, keeping stdout free for the human-readable
ready and shutdown messages.
*/
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the logging configuration.
type Config struct {
	// Level is one of "debug", "info", "warn", or "error".
	Level string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	// Format is either "console" or "json".
	Format string `mapstructure:"format" default:"console" validate:"oneof=console json"`
}

// New returns a new zap logger configured as specified.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var zcfg zap.Config
	if level.Level() == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = level
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	switch cfg.Format {
	case "console", "":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zcfg.DisableStacktrace = true
	case "json":
		zcfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zcfg.EncoderConfig.LevelKey = "level"
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.MessageKey = "message"

	return zcfg.Build()
}
