package dapp

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationShowAndHide(t *testing.T) {
	logger, _ := test.NewNullLogger()
	nc := NewNotificationCenter(logger, 20*time.Millisecond, 60*time.Millisecond, 10)
	defer nc.Close()

	nc.Notify("hello", LevelInfo, 0)
	assert.Nil(t, nc.Current())
	require.NotNil(t, nc.Latest())

	require.Eventually(t, func() bool {
		return nc.Current() != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello", nc.Current().Message)
	assert.Equal(t, LevelInfo, nc.Current().Level)

	require.Eventually(t, func() bool {
		return nc.Current() == nil
	}, time.Second, 5*time.Millisecond)
}

func TestNotificationSupersedes(t *testing.T) {
	logger, _ := test.NewNullLogger()
	nc := NewNotificationCenter(logger, 0, 200*time.Millisecond, 10)
	defer nc.Close()

	subscription := nc.SubscribeNotifications(4)
	defer subscription.Unsubscribe()

	nc.Notify("first", LevelInfo, 0)
	nc.Notify("second", LevelError, 0)

	require.Eventually(t, func() bool {
		current := nc.Current()
		return current != nil && current.Message == "second"
	}, time.Second, 5*time.Millisecond)

	select {
	case shown := <-subscription.Channel():
		assert.Equal(t, "second", shown.Message)
	case <-time.After(time.Second):
		t.Fatal("no notification dispatched")
	}
}

func TestDebugLogHistory(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	nc := NewNotificationCenter(logger, 0, time.Second, 3)
	defer nc.Close()

	for i := 0; i < 5; i++ {
		nc.DebugLog("line %v", i)
	}

	lines := nc.DebugLines()
	require.Len(t, lines, 3)
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("line %v", i+2), line.Message)
		assert.False(t, line.Time.IsZero())
	}
	assert.Len(t, hook.AllEntries(), 5)
	assert.Equal(t, "line 4", hook.LastEntry().Message)
}
