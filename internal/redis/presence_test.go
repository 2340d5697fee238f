package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewerIDs(t *testing.T) {
	members := []string{
		presenceMember("u2", "c1"),
		presenceMember("u1", "c2"),
		presenceMember("u2", "c3"),
		"|orphan",
	}
	assert.Equal(t, []string{"u1", "u2"}, viewerIDs(members))
	assert.Empty(t, viewerIDs(nil))
}

func TestPresenceKeys(t *testing.T) {
	assert.Equal(t, "presence:conversation:c1", presenceKey("c1"))
	assert.Equal(t, "channel:viewers:c1", ViewersChannel("c1"))
}
