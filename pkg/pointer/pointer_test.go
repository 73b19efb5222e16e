// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pointer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/koma/pkg/pointer"
)

func TestTo(t *testing.T) {
	value := 7
	ptr := pointer.To(value)
	value = 8

	assert.Equal(t, 7, *ptr)
}

func TestNonBlank(t *testing.T) {
	assert.Nil(t, pointer.NonBlank(""))
	assert.Nil(t, pointer.NonBlank("  \t "))

	got := pointer.NonBlank("  The Beginning ")
	require.NotNil(t, got)
	assert.Equal(t, "The Beginning", *got)
}
