package id

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID(t *testing.T) {
	a := NewULID()
	b := NewULID()

	assert.Len(t, a, 26)
	assert.True(t, IsValidULID(a))
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "同一进程内生成的 ID 单调递增")
}

func TestNewULID_Concurrent(t *testing.T) {
	const n = 1000
	ids := make([]string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = NewULID()
		}(i)
	}
	wg.Wait()

	sort.Strings(ids)
	for i := 1; i < n; i++ {
		assert.NotEqual(t, ids[i-1], ids[i])
	}
}

func TestIsValidULID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"合法", "01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"长度不足", "01ARZ3NDEK", false},
		{"非法字符", "01ARZ3NDEKTSV4RRFFQ69G5FAU!", false},
		{"空字符串", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidULID(tt.in))
		})
	}
}

func TestULIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := ULIDTime(NewULID())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = ULIDTime("invalid")
	assert.Error(t, err)
}
