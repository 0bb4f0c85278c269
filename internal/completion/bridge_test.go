package completion

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBridge(t *testing.T, handler http.HandlerFunc) *atomic.Int32 {
	t.Helper()
	var fired atomic.Int32
	b := NewBridge(nil)
	b.Run(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/work", nil), handler,
		func(w http.ResponseWriter, r *http.Request) { fired.Add(1) })
	return &fired
}

func waitForFire(t *testing.T, fired *atomic.Int32) {
	t.Helper()
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	// Give a racing duplicate a chance to show up.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestBridge_SynchronousHandler(t *testing.T) {
	fired := runBridge(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	assert.Equal(t, int32(1), fired.Load())
}

func TestBridge_AsyncCompletes(t *testing.T) {
	fired := runBridge(t, func(w http.ResponseWriter, r *http.Request) {
		actx, err := StartAsync(w, r)
		require.NoError(t, err)
		go func() {
			time.Sleep(10 * time.Millisecond)
			actx.Complete()
		}()
	})
	waitForFire(t, fired)
}

func TestBridge_AsyncTimesOut(t *testing.T) {
	fired := runBridge(t, func(w http.ResponseWriter, r *http.Request) {
		actx, err := StartAsync(w, r)
		require.NoError(t, err)
		actx.SetTimeout(10 * time.Millisecond)
	})
	waitForFire(t, fired)
}

func TestBridge_AsyncErrors(t *testing.T) {
	fired := runBridge(t, func(w http.ResponseWriter, r *http.Request) {
		actx, err := StartAsync(w, r)
		require.NoError(t, err)
		go func() {
			time.Sleep(10 * time.Millisecond)
			actx.Error(errors.New("backend failed"))
		}()
	})
	waitForFire(t, fired)
}

func TestBridge_AsyncErrorThenComplete(t *testing.T) {
	fired := runBridge(t, func(w http.ResponseWriter, r *http.Request) {
		actx, err := StartAsync(w, r)
		require.NoError(t, err)
		go func() {
			time.Sleep(10 * time.Millisecond)
			actx.Error(errors.New("boom"))
			actx.Complete()
		}()
	})
	waitForFire(t, fired)
}

func TestBridge_AsyncFinishedBeforeHandlerReturned(t *testing.T) {
	// The async operation completes before the bridge can register its
	// listener; registration fails and the post-action runs synchronously.
	fired := runBridge(t, func(w http.ResponseWriter, r *http.Request) {
		actx, err := StartAsync(w, r)
		require.NoError(t, err)
		actx.Complete()
	})
	assert.Equal(t, int32(1), fired.Load())
}

func TestBridge_HandlerPanicStillFiresAndPropagates(t *testing.T) {
	var fired atomic.Int32
	b := NewBridge(nil)

	assert.Panics(t, func() {
		b.Run(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil),
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("handler exploded")
			}),
			func(w http.ResponseWriter, r *http.Request) { fired.Add(1) })
	})
	assert.Equal(t, int32(1), fired.Load())
}

func TestBridge_DefaultAsyncTimeout(t *testing.T) {
	var fired atomic.Int32
	b := NewBridge(nil)
	b.SetAsyncTimeout(10 * time.Millisecond)

	b.Run(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/work", nil),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The handler never completes; the bridge-level default timeout
			// finishes the exchange.
			_, err := StartAsync(w, r)
			require.NoError(t, err)
		}),
		func(w http.ResponseWriter, r *http.Request) { fired.Add(1) })

	waitForFire(t, &fired)
}
