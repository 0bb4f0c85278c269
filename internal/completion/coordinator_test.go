package completion

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinator_FiresExactlyOnce(t *testing.T) {
	var count int
	c := NewCoordinator(func(w http.ResponseWriter, r *http.Request) { count++ })

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.False(t, c.Fired())
	assert.True(t, c.Fire(w, r))
	assert.True(t, c.Fired())
	assert.False(t, c.Fire(w, r))
	assert.Equal(t, 1, count)
}

func TestCoordinator_NilActionIsInert(t *testing.T) {
	c := NewCoordinator(nil)
	assert.True(t, c.Fired())
	assert.False(t, c.Fire(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestCoordinator_ConcurrentFireSingleWinner(t *testing.T) {
	var count atomic.Int32
	c := NewCoordinator(func(w http.ResponseWriter, r *http.Request) { count.Add(1) })

	r := httptest.NewRequest(http.MethodGet, "/", nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Fire(httptest.NewRecorder(), r)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), count.Load())
}
