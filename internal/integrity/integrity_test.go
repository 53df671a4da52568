package integrity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classtrack/quizengine/internal/integrity"
)

func TestWatcher_ForwardsWhileHeld(t *testing.T) {
	var got []integrity.Kind
	w := integrity.Acquire(func(k integrity.Kind) { got = append(got, k) })

	require.True(t, w.Report(integrity.KindVisibilityHidden))
	require.True(t, w.Report(integrity.KindFullscreenExit))
	require.Equal(t, []integrity.Kind{integrity.KindVisibilityHidden, integrity.KindFullscreenExit}, got)
}

func TestWatcher_DropsAfterRelease(t *testing.T) {
	calls := 0
	w := integrity.Acquire(func(integrity.Kind) { calls++ })

	w.Release()
	w.Release() // releasing twice is fine

	require.False(t, w.Report(integrity.KindVisibilityHidden))
	require.Zero(t, calls)
}

func TestKind_Valid(t *testing.T) {
	require.True(t, integrity.KindVisibilityHidden.Valid())
	require.True(t, integrity.KindFullscreenExit.Valid())
	require.False(t, integrity.Kind("copy-paste").Valid())
}
