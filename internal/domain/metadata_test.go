package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatList_Lookup(t *testing.T) {
	list := FormatList{
		{ID: "v1", Label: "1080p"},
		{ID: "v2", Label: "720p"},
	}

	f, ok := list.Lookup("v2")
	assert.True(t, ok)
	assert.Equal(t, "720p", f.Label)

	_, ok = list.Lookup("v9")
	assert.False(t, ok)
}

func TestFormatList_Default(t *testing.T) {
	list := FormatList{
		{ID: "v1", Label: "1080p"},
		{ID: "v2", Label: "720p"},
	}

	f, ok := list.Default()
	assert.True(t, ok)
	assert.Equal(t, "v1", f.ID)

	_, ok = FormatList{}.Default()
	assert.False(t, ok)
}

func TestVideoMetadata_HasFormats(t *testing.T) {
	m := &VideoMetadata{ID: "abc", Title: "t"}
	assert.False(t, m.HasFormats())

	m.Formats.Audio = FormatList{{ID: "a1", Label: "High"}}
	assert.True(t, m.HasFormats())
}
