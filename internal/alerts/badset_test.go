package alerts

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBadSetConcurrentAccess(t *testing.T) {
	set := NewBadSet()
	const workers = 16
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("health.w%02d.%03d", w, i)
				set.Add(id)
				assert.True(t, set.Contains(id))
				if i%2 == 1 {
					set.Remove(id)
				}
				_ = set.Snapshot()
			}
		}(w)
	}
	wg.Wait()

	snapshot := set.Snapshot()
	assert.Len(t, snapshot, workers*perWorker/2)
	assert.True(t, set.Contains("health.w00.000"))
	assert.False(t, set.Contains("health.w00.001"))
	assert.IsIncreasing(t, snapshot)
}
