package authweb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotificationBuffer(t *testing.T) {
	var b NotificationBuffer

	_, ok := b.Last(NotificationSuccess)
	assert.False(t, ok)

	b.Error("first error")
	b.Success("saved")
	b.Error("second error")

	items := b.Items()
	assert.Len(t, items, 3)
	assert.Equal(t, Notification{Level: NotificationError, Message: "first error"}, items[0])

	last, ok := b.Last(NotificationError)
	assert.True(t, ok)
	assert.Equal(t, "second error", last.Message)

	last, ok = b.Last(NotificationSuccess)
	assert.True(t, ok)
	assert.Equal(t, "saved", last.Message)

	// Items returns a copy
	items[0].Message = "mutated"
	assert.Equal(t, "first error", b.Items()[0].Message)
}

func TestNavigationRecorder(t *testing.T) {
	var r NavigationRecorder

	_, ok := r.Pending()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Calls())

	r.Navigate("/")
	nav, ok := r.Pending()
	assert.True(t, ok)
	assert.True(t, nav.Immediate())
	assert.Equal(t, "/", nav.Path)

	r.NavigateAfter("/login", 2*time.Second)
	nav, _ = r.Pending()
	assert.False(t, nav.Immediate())
	assert.Equal(t, Navigation{Path: "/login", Delay: 2 * time.Second}, nav)
	assert.Equal(t, 2, r.Calls())
}
