package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Log
	Log = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() { Log = prev })
	return &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestGormLogger_Trace(t *testing.T) {
	buf := capture(t)
	l := NewGormLogger(gormlogger.Warn, 50*time.Millisecond)
	query := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "not-found lookups are routine")

	l.Trace(context.Background(), time.Now(), query, errors.New("connection reset"))
	assert.Contains(t, buf.String(), "SQL error")
	assert.Contains(t, buf.String(), "connection reset")

	buf.Reset()
	l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	assert.Contains(t, buf.String(), "Slow SQL")

	buf.Reset()
	l.Trace(context.Background(), time.Now(), query, nil)
	assert.Empty(t, buf.String(), "plain queries are logged only at info")

	l.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), query, errors.New("x"))
	assert.Empty(t, buf.String())
}
