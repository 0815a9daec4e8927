// Package nlog wraps zap to give every scclang package a single, leveled
// logging surface with aistore-style call sites (Infoln, Warningln, Errorln).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = build()
)

func build() *zap.SugaredLogger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(zapcore.AddSync(zapWriter{})), level)
	return zap.New(core).Sugar()
}

// zapWriter defers to the standard error stream, matching the teacher's
// preference for unbuffered diagnostic output during compilation.
type zapWriter struct{}

func (zapWriter) Write(p []byte) (int, error) { return os.Stderr.Write(p) }

// SetLogLevel changes the minimum level emitted; v mirrors nlog's verbosity
// knob: 0 = info, 1 = debug.
func SetLogLevel(v int) {
	mu.Lock()
	defer mu.Unlock()
	if v > 0 {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

func Infoln(args ...any)         { logger.Infoln(args...) }
func Infof(f string, a ...any)   { logger.Infof(f, a...) }
func Warningln(args ...any)      { logger.Warnln(args...) }
func Errorln(args ...any)        { logger.Errorln(args...) }
func Errorf(f string, a ...any)  { logger.Errorf(f, a...) }
func Fatalln(args ...any)        { logger.Fatalln(args...) }
