package video

import (
	"context"
	"image"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gray(v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 32, 24))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(t.TempDir(), 30)
	r.Add(gray(1)) // not recording, ignored

	_, err := r.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)

	file, err := r.Start()
	require.NoError(t, err)
	assert.True(t, r.Recording())
	_, err = r.Start()
	assert.ErrorIs(t, err, ErrRecording)

	for i := 0; i < 3; i++ {
		r.Add(gray(uint8(i * 50)))
	}
	rec, err := r.Stop()
	require.NoError(t, err)
	assert.False(t, r.Recording())
	assert.Equal(t, file, rec.Path)
	assert.Equal(t, 3, rec.Frames)
	assert.Zero(t, rec.Dropped)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Greater(t, len(data), 12)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "AVI ", string(data[8:12]))
}

func TestRecorder_EmptySessionWritesNothing(t *testing.T) {
	r := NewRecorder(t.TempDir(), 30)
	file, err := r.Start()
	require.NoError(t, err)

	rec, err := r.Stop()
	require.NoError(t, err)
	assert.Zero(t, rec.Frames)
	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))
}

func TestTee(t *testing.T) {
	r := NewRecorder(t.TempDir(), 30)
	_, err := r.Start()
	require.NoError(t, err)

	in := make(chan *image.Gray, 2)
	in <- gray(10)
	in <- gray(20)
	close(in)

	var got []uint8
	for img := range r.Tee(context.Background(), in) {
		got = append(got, img.Pix[0])
	}
	assert.Equal(t, []uint8{10, 20}, got)

	rec, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Frames)
}
