package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimestampIsUnixSeconds(t *testing.T) {
	require := require.New(t)

	before := uint64(time.Now().Unix())
	got := Timestamp()
	after := uint64(time.Now().Unix())

	require.GreaterOrEqual(got, before)
	require.LessOrEqual(got, after)
}

func TestMonotonicAdvancesWithWallClock(t *testing.T) {
	require := require.New(t)

	const sleepTime = 100 * time.Millisecond

	before := Monotonic()
	time.Sleep(sleepTime)
	after := Monotonic()

	require.InEpsilon(int64(sleepTime), int64(after-before), 0.05, "interval subtraction")
}
