// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package suppress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWith(t *testing.T) {
	ctx := context.Background()
	require.False(t, IsSuppressed(ctx))

	ctx = With(ctx)
	require.True(t, IsSuppressed(ctx))

	// Flag propagates through derived contexts.
	child, cancel := context.WithCancel(ctx)
	defer cancel()
	require.True(t, IsSuppressed(child))

	// Already flagged contexts are returned unchanged.
	require.Equal(t, ctx, With(ctx))
}
