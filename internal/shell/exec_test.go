package shell

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"smash/internal/proc"
	"smash/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForegroundExternalWritesThroughRedirect(t *testing.T) {
	ts := newTestShell(t)
	out := tempPath(t, "out.txt")

	assert.Equal(t, OutcomeRedirect, ts.Execute("echo one > "+out))
	assert.Equal(t, "one\n", readFile(t, out))

	ts.Execute("echo two >> " + out)
	assert.Equal(t, "one\ntwo\n", readFile(t, out))

	ts.Execute("echo three > " + out)
	assert.Equal(t, "three\n", readFile(t, out))
	assert.Empty(t, ts.err.String())
	assert.Equal(t, 0, ts.Jobs().Len())
}

func TestBuiltinOutputFollowsRedirect(t *testing.T) {
	ts := newTestShell(t, func(o *Options) {
		o.Stdout = os.Stdout
		o.PID = 31337
	})
	out := tempPath(t, "pid.txt")

	ts.Execute("showpid > " + out)
	assert.Equal(t, "smash pid is 31337\n", readFile(t, out))
}

func TestRedirectOpenFailure(t *testing.T) {
	ts := newTestShell(t)
	assert.Equal(t, OutcomeRedirect, ts.Execute("showpid > /definitely/not/here/out"))
	assert.Equal(t, "smash error: open failed: no such file or directory\n", ts.err.String())
}

func TestBackgroundExternalReturnsImmediately(t *testing.T) {
	ts := newTestShell(t)
	start := time.Now()
	assert.Equal(t, OutcomeExternal, ts.Execute("sleep 100 &"))
	assert.Less(t, time.Since(start), 5*time.Second)

	j, ok := ts.Jobs().Get(1)
	require.True(t, ok)
	assert.Equal(t, "sleep 100 &", j.Line())
	assert.Nil(t, ts.Foreground())

	ts.Execute("sleep 100&")
	assert.Equal(t, 2, ts.Jobs().Highest())
}

func TestFinishedJobsAreReapedBeforeDispatch(t *testing.T) {
	ts := newTestShell(t)
	ts.Execute("true &")
	require.Eventually(t, func() bool {
		ts.out.Reset()
		ts.Execute("jobs")
		return ts.out.String() == ""
	}, 5*time.Second, 20*time.Millisecond)

	ts.Execute("sleep 100 &")
	j, ok := ts.Jobs().Get(1)
	require.True(t, ok, "ids restart once the table is empty")
	assert.Equal(t, "sleep 100 &", j.Line())
}

func TestSpawnFailureIsReported(t *testing.T) {
	ts := newTestShell(t, func(o *Options) {
		o.Config.Interpreter = "/definitely/not/a/shell"
	})
	assert.Equal(t, OutcomeExternal, ts.Execute("ls"))
	assert.Equal(t, "smash error: execv failed: no such file or directory\n", ts.err.String())
	assert.Equal(t, 0, ts.Jobs().Len())
}

func TestNestingDepthIsBounded(t *testing.T) {
	ts := newTestShell(t, func(o *Options) { o.Config.MaxDepth = 0 })
	ts.Execute("showpid > " + tempPath(t, "out"))
	assert.Equal(t, "smash error: too many nested commands\n", ts.err.String())
	assert.Empty(t, ts.out.String())
}

func TestPipeIntoExternal(t *testing.T) {
	ts := newTestShell(t)
	out := tempPath(t, "piped.txt")

	assert.Equal(t, OutcomeRedirect, ts.Execute("echo hello | tr a-z A-Z > "+out))
	assert.Equal(t, "HELLO\n", readFile(t, out))
	assert.Empty(t, ts.err.String())
}

func TestPipeCarriesMoreThanPipeBuffer(t *testing.T) {
	const seqBytes = 588895 // len of "1\n2\n...100000\n"
	ts := newTestShell(t)

	copied := tempPath(t, "copied.txt")
	ts.Execute("seq 1 100000 | cat > " + copied)
	got := readFile(t, copied)
	assert.Len(t, got, seqBytes)
	assert.True(t, strings.HasPrefix(got, "1\n2\n3\n"))
	assert.True(t, strings.HasSuffix(got, "99999\n100000\n"))

	counted := tempPath(t, "counted.txt")
	ts.Execute("seq 1 100000 | wc -c > " + counted)
	assert.Equal(t, strconv.Itoa(seqBytes), strings.TrimSpace(readFile(t, counted)))
	assert.Empty(t, ts.err.String())
}

func TestStdoutRestoredAfterRedirectAndPipe(t *testing.T) {
	outer, err := os.Create(tempPath(t, "outer.txt"))
	require.NoError(t, err)
	defer outer.Close()
	saved, err := proc.Redirect(int(outer.Fd()), 1)
	require.NoError(t, err)

	ts := newTestShell(t, func(o *Options) {
		o.Stdout = os.Stdout
		o.PID = 4242
	})
	inner := tempPath(t, "inner.txt")
	ts.Execute("echo in > " + inner)
	ts.Execute("showpid | cat >> " + inner)
	ts.Execute("echo after")
	ts.Execute("showpid")

	require.NoError(t, saved.Restore())
	assert.Equal(t, "in\nsmash pid is 4242\n", readFile(t, inner))
	assert.Equal(t, "after\nsmash pid is 4242\n", readFile(t, outer.Name()))
	assert.Empty(t, ts.err.String())
}

func TestPipeStderr(t *testing.T) {
	ts := newTestShell(t)
	out := tempPath(t, "stderr.txt")

	ts.Execute("ls /definitely-not-here-smash |& cat > " + out)
	assert.Contains(t, readFile(t, out), "definitely-not-here-smash")
}

func TestPipeChildRunsBuiltinsWithParentState(t *testing.T) {
	ts := newTestShell(t)
	ts.Execute("sleep 100 &")
	j, ok := ts.Jobs().Get(1)
	require.True(t, ok)

	pidOut := tempPath(t, "pid.txt")
	ts.Execute("showpid | cat > " + pidOut)
	assert.Equal(t, fmt.Sprintf("smash pid is %d\n", os.Getpid()), readFile(t, pidOut))

	jobsOut := tempPath(t, "jobs.txt")
	ts.Execute("jobs | cat > " + jobsOut)
	assert.True(t, strings.HasPrefix(readFile(t, jobsOut), fmt.Sprintf("[1] sleep 100 & : %d ", j.PID)))

	assert.True(t, ts.prober.Alive(j.PID))
	assert.Equal(t, 1, ts.Jobs().Len(), "the child leaves inherited jobs running")
}

func TestQuitPropagatesOutOfPipe(t *testing.T) {
	ts := newTestShell(t)
	assert.Equal(t, OutcomeQuit, ts.Execute("echo bye | quit"))
}

func TestTimeoutArgumentValidation(t *testing.T) {
	ts := newTestShell(t)
	for _, line := range []string{"timeout", "timeout 5", "timeout x sleep 1", "timeout -1 sleep 1"} {
		ts.err.Reset()
		assert.Equal(t, OutcomeTimeout, ts.Execute(line), line)
		assert.Equal(t, "smash error: timeout: invalid arguments\n", ts.err.String(), line)
	}
	assert.Equal(t, 0, ts.Jobs().Len())
}

func TestTimeoutArmsScheduler(t *testing.T) {
	fa := &fakeAlarm{}
	ts := newTestShell(t, func(o *Options) { o.Scheduler = registry.NewScheduler(fa) })

	ts.Execute("timeout 5 sleep 100 &")
	assert.Equal(t, 1, ts.Jobs().Len())
	assert.InDelta(t, float64(5*time.Second), float64(fa.last()), float64(time.Second))

	ts.out.Reset()
	ts.Execute("kill -9 1")
	require.Eventually(t, func() bool {
		ts.Execute("jobs")
		return ts.Jobs().Len() == 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, ts.timeouts.Len(), "reaped jobs leave the scheduler")
}

func TestAlarmKillsExpiredJobs(t *testing.T) {
	fa := &fakeAlarm{}
	ts := newTestShell(t, func(o *Options) { o.Scheduler = registry.NewScheduler(fa) })

	ts.Execute("timeout 0 sleep 100 &")
	ts.Execute("timeout 100 sleep 100 &")
	require.Equal(t, 2, ts.Jobs().Len())
	expired, _ := ts.Jobs().Get(1)

	ts.Alarm()
	assert.Equal(t, "smash: got an alarm\nsmash: timeout 0 sleep 100 & timed out!\n", ts.out.String())
	assert.Equal(t, 1, ts.Jobs().Len())
	_, ok := ts.Jobs().Get(2)
	assert.True(t, ok)
	assert.Equal(t, 1, ts.timeouts.Len())
	assert.Greater(t, fa.last(), 90*time.Second)

	require.Eventually(t, func() bool {
		return !ts.prober.Alive(expired.PID)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestForegroundTimeoutWithRealAlarm(t *testing.T) {
	ts := newTestShell(t)
	ts.HandleSignals()

	start := time.Now()
	assert.Equal(t, OutcomeTimeout, ts.Execute("timeout 1 sleep 100"))
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.Eventually(t, func() bool {
		return strings.Contains(ts.out.String(), "smash: timeout 1 sleep 100 timed out!\n")
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, strings.HasPrefix(ts.out.String(), "smash: got an alarm\n"))
	assert.Equal(t, 0, ts.Jobs().Len())
	assert.Nil(t, ts.Foreground())
}

func TestBackgroundTimeoutsExpireInDeadlineOrder(t *testing.T) {
	ts := newTestShell(t)
	ts.HandleSignals()

	ts.Execute("timeout 2 sleep 100&")
	ts.Execute("timeout 1 sleep 100&")

	require.Eventually(t, func() bool {
		return strings.Count(ts.out.String(), "timed out!") == 2
	}, 10*time.Second, 20*time.Millisecond)
	out := ts.out.String()
	first := strings.Index(out, "timeout 1 sleep 100& timed out!")
	second := strings.Index(out, "timeout 2 sleep 100& timed out!")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
	assert.Equal(t, 0, ts.Jobs().Len())
}
