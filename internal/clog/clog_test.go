package clog_test

import (
	"fmt"
	"testing"

	"github.com/medusa-ds9/medusad/internal/clog"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	lines []string
}

func (s *stubProvider) Critical(format string, v ...interface{}) { s.lines = append(s.lines, "C:"+fmt.Sprintf(format, v...)) }
func (s *stubProvider) Error(format string, v ...interface{})    { s.lines = append(s.lines, "E:"+fmt.Sprintf(format, v...)) }
func (s *stubProvider) Warn(format string, v ...interface{})     { s.lines = append(s.lines, "W:"+fmt.Sprintf(format, v...)) }
func (s *stubProvider) Debug(format string, v ...interface{})    { s.lines = append(s.lines, "D:"+fmt.Sprintf(format, v...)) }

func TestLogModeGatesOutput(t *testing.T) {
	stub := &stubProvider{}
	c := clog.NewLogger()
	c.SetLogProvider(stub)

	c.LogMode(false)
	c.Warn("hidden %d", 1)
	require.Empty(t, stub.lines)

	c.LogMode(true)
	c.Warn("visible %d", 2)
	require.Equal(t, []string{"W:visible 2"}, stub.lines)
}
