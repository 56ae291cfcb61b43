package helpers

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotifierDropsRepeatsWhileVisible(t *testing.T) {
	var out bytes.Buffer
	n := NewNotifier(&out, false)
	now := time.Unix(1700000000, 0)
	n.now = func() time.Time { return now }

	n.Success("Run successfully", 2*time.Second)
	n.Success("Run successfully", 2*time.Second)
	assert.Equal(t, "✓ Run successfully\n", out.String())

	now = now.Add(3 * time.Second)
	n.Success("Run successfully", 2*time.Second)
	n.Success("Saved", 2*time.Second)
	assert.Equal(t, "✓ Run successfully\n✓ Run successfully\n✓ Saved\n", out.String())
}
