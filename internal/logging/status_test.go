package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedStatus(buf *bytes.Buffer, noColor bool) *Status {
	s := NewStatus(buf, noColor)
	s.now = func() time.Time { return time.Date(2024, 1, 1, 12, 4, 5, 0, time.UTC) }

	return s
}

func TestStatus_OKNoColor(t *testing.T) {
	var buf bytes.Buffer
	s := fixedStatus(&buf, true)

	s.OK("scss", "")
	s.OK("bundle", "1.2 kB")

	assert.Equal(t, "[12:04:05] scss → OK\n[12:04:05] bundle → OK (1.2 kB)\n", buf.String())
}

func TestStatus_FailKeepsBracketsInError(t *testing.T) {
	var buf bytes.Buffer
	s := fixedStatus(&buf, true)

	s.Fail("scss", errors.New("unexpected [red] token"))

	assert.Equal(t, "[12:04:05] scss → ERROR: unexpected [red] token\n", buf.String())
}

func TestStatus_ColorEnabled(t *testing.T) {
	var buf bytes.Buffer
	s := fixedStatus(&buf, false)

	s.OK("scss", "")

	assert.Contains(t, buf.String(), "\033[")
	assert.Contains(t, buf.String(), "OK")
}

func TestNewStatus_NilWriter(t *testing.T) {
	s := NewStatus(nil, true)
	assert.NotPanics(t, func() { s.Printf("hello") })
}
