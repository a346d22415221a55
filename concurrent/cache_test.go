// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package concurrent

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_GetOr(t *testing.T) {
	t.Run("computes once per key", func(t *testing.T) {
		c := NewCache[string, int]()

		var wg sync.WaitGroup
		var calls int
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := c.GetOr("a", func() (int, error) {
					calls++
					return 42, nil
				})
				require.NoError(t, err)
				require.Equal(t, 42, v)
			}()
		}
		wg.Wait()

		require.Equal(t, 1, calls)
		require.Equal(t, 1, c.Len())
	})

	t.Run("does not cache errors", func(t *testing.T) {
		c := NewCache[string, int]()

		_, err := c.GetOr("a", func() (int, error) {
			return 0, errors.New("boom")
		})
		require.Error(t, err)
		require.Equal(t, 0, c.Len())

		v, err := c.GetOr("a", func() (int, error) {
			return 7, nil
		})
		require.NoError(t, err)
		require.Equal(t, 7, v)
	})
}

func TestCache_Range(t *testing.T) {
	c := NewCache[int, string]()
	for i, s := range []string{"a", "b", "c"} {
		_, err := c.GetOr(i, func() (string, error) { return s, nil })
		require.NoError(t, err)
	}

	seen := make(map[int]string)
	c.Range(func(k int, v string) bool {
		seen[k] = v
		return true
	})
	require.Equal(t, map[int]string{0: "a", 1: "b", 2: "c"}, seen)
}
