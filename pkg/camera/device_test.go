package camera

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vladimirvivien/go4vl/v4l2"
)

func TestNegotiatedSize(t *testing.T) {
	opts := Options{Width: 1280, Height: 1024}

	tests := []struct {
		name  string
		pf    v4l2.PixFormat
		err   error
		wantW int
		wantH int
	}{
		{name: "driver shrank the frame", pf: v4l2.PixFormat{Width: 640, Height: 480}, wantW: 640, wantH: 480},
		{name: "driver kept the request", pf: v4l2.PixFormat{Width: 1280, Height: 1024}, wantW: 1280, wantH: 1024},
		{name: "read back failed", err: errors.New("ENOTTY"), wantW: 1280, wantH: 1024},
		{name: "empty format", wantW: 1280, wantH: 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := negotiatedSize(opts, tt.pf, tt.err)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}
