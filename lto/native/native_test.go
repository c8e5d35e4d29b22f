//go:build cgo

package native

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ltold/ld"
	"ltold/lto"
)

type recordingLoader struct {
	tv []lto.TagValue
}

func (l *recordingLoader) Load(path string, tv []lto.TagValue) error {
	l.tv = tv
	return nil
}

func TestEveryCapabilityHasTrampoline(t *testing.T) {
	rec := &recordingLoader{}
	s := lto.NewSession(ld.NewContext(ld.Args{Plugin: "x.so", Output: "a.out"}), rec)
	require.NoError(t, s.Load())
	require.NotEmpty(t, rec.tv)

	for _, entry := range rec.tv {
		switch entry.Value.(type) {
		case nil, string, lto.OutputFileType:
			continue
		default:
			assert.True(t, hasTrampoline(entry.Tag), "no trampoline for %s", entry.Tag)
		}
	}

	assert.False(t, hasTrampoline(lto.TagOutputName))
	assert.False(t, hasTrampoline(lto.Tag(99)))
}

func TestLoadOncePerProcessKeepsFirstError(t *testing.T) {
	l := NewLoader()

	err := l.Load("/nonexistent/liblto_plugin.so", []lto.TagValue{{Tag: lto.TagNull}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not open plugin")

	// a failed load is not reported as a loaded plugin
	again := l.Load("/other/LLVMgold.so", []lto.TagValue{{Tag: lto.TagNull}})
	require.Error(t, again)
	assert.NotErrorIs(t, again, errAlreadyLoaded)
	assert.Equal(t, err.Error(), again.Error())
}

func TestLongMessagesAreNotTruncated(t *testing.T) {
	msg := strings.Repeat("x", 10000) + " end"
	assert.Equal(t, msg, formatString(msg))
	assert.Equal(t, "", formatString(""))
}
