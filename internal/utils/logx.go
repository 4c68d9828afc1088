package utils

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type RotationOptions struct {
	Enable     bool `yaml:"enable"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

type LogOptions struct {
	// Path is the base log directory; empty logs to the console only.
	Path     string          `yaml:"path"`
	Level    string          `yaml:"level"`
	Console  bool            `yaml:"console"`
	JSON     bool            `yaml:"json"`
	Rotation RotationOptions `yaml:"rotation"`
}

// LogxManager builds the node logger: console plus info/error/debug files
// under <Path>/<node>/.
type LogxManager struct {
	opts   LogOptions
	files  []*os.File
	logger *zap.Logger
}

func NewManager(node string, opts LogOptions) *LogxManager {
	m := &LogxManager{opts: opts}
	m.logger = m.build(node)
	return m
}

func (m *LogxManager) Logger() *zap.Logger {
	return m.logger
}

func (m *LogxManager) Sync() {
	_ = m.logger.Sync()
	for _, f := range m.files {
		_ = f.Close()
	}
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (m *LogxManager) build(node string) *zap.Logger {
	minLevel := parseLevel(m.opts.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	var encoder zapcore.Encoder
	if m.opts.JSON {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var cores []zapcore.Core
	if m.opts.Console || m.opts.Path == "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), minLevel))
	}

	if m.opts.Path != "" {
		dir := filepath.Join(m.opts.Path, node)
		if err := os.MkdirAll(dir, 0744); err != nil {
			log.Printf("failed to create log dir %s: %v", dir, err)
		}

		infoOut := m.sink(filepath.Join(dir, "info.log"))
		errorOut := m.sink(filepath.Join(dir, "error.log"))
		dbgOut := m.sink(filepath.Join(dir, "debug.log"))

		infoLv := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= minLevel && (l == zapcore.InfoLevel || l == zapcore.WarnLevel)
		})
		errLv := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel })
		dbgLv := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= minLevel && l == zapcore.DebugLevel })

		cores = append(cores,
			zapcore.NewCore(encoder, infoOut, infoLv),
			zapcore.NewCore(encoder, errorOut, errLv),
			zapcore.NewCore(encoder, dbgOut, dbgLv),
		)
	}

	return zap.New(zapcore.NewTee(cores...)).With(zap.String("node", node))
}

func (m *LogxManager) sink(path string) zapcore.WriteSyncer {
	if m.opts.Rotation.Enable {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    max(m.opts.Rotation.MaxSizeMB, 10),
			MaxBackups: max(m.opts.Rotation.MaxBackups, 1),
			MaxAge:     max(m.opts.Rotation.MaxAgeDays, 7),
			Compress:   m.opts.Rotation.Compress,
		})
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", path, err)
		return zapcore.Lock(os.Stdout)
	}
	m.files = append(m.files, f)
	return zapcore.AddSync(f)
}
