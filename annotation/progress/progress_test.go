package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBar_NonTerminalLogsCheckpoints(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	log, hook := test.NewNullLogger()
	b := New(&out, log)
	require.False(t, b.isTTY)

	b.Start(20)
	for i := 0; i < 20; i++ {
		b.Advance("succeeded")
	}
	b.Finish()

	assert.Empty(t, out.String(), "nothing is drawn off-terminal")

	var progress int
	for _, e := range hook.AllEntries() {
		if e.Message == "labeling progress" {
			progress++
		}
	}
	assert.Equal(t, 10, progress)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "labeling finished", last.Message)
	assert.Equal(t, logrus.InfoLevel, last.Level)
	assert.Equal(t, 20, last.Data["succeeded"])
}

func TestBar_TerminalRendering(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	b := New(&out, nil)
	b.isTTY = true

	b.Start(4)
	b.Advance("skipped")
	b.Advance("succeeded")
	b.Advance("failed")
	b.Advance("succeeded")
	b.Finish()

	s := out.String()
	assert.Equal(t, 5, strings.Count(s, "\r\033[2K"))
	assert.Contains(t, s, " 2/4")
	assert.Contains(t, s, " 4/4\n")
	assert.True(t, strings.HasSuffix(s, "Done: 4/4 dialogues (1 failed, 1 skipped, 2 succeeded)\n"), s)
}

func TestBar_EmptyRun(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	b := New(&out, nil)
	b.isTTY = true
	b.Start(0)
	b.Finish()

	assert.Contains(t, out.String(), "Done: 0/0 dialogues (nothing to do)")
	assert.Equal(t, 1.0, b.percent())
}
