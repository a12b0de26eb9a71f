// Package image turns raw V4L2 frame buffers into 8-bit luma images.
package image

import (
	"errors"
	"fmt"
	"image"

	"github.com/vladimirvivien/go4vl/v4l2"
	"gocv.io/x/gocv"
)

var ErrShortBuffer = errors.New("frame buffer too short")

// Decoder converts one raw frame into a gray image.
type Decoder func(data []byte, width, height int) (*image.Gray, error)

// DecoderFor picks the decoder for a V4L2 pixel format.
func DecoderFor(pixFmt v4l2.FourCCType) (Decoder, error) {
	switch pixFmt {
	case v4l2.PixelFmtYUYV:
		return DecodeYUYV, nil
	case v4l2.PixelFmtRGB24:
		return DecodeRGB, nil
	case v4l2.PixelFmtMJPEG, v4l2.PixelFmtJPEG:
		return DecodeJPEG, nil
	default:
		return nil, fmt.Errorf("unsupported pixel format %d", pixFmt)
	}
}

// DecodeYUYV keeps the Y samples of a packed 4:2:2 frame.
func DecodeYUYV(data []byte, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 || len(data) < width*height*2 {
		return nil, ErrShortBuffer
	}
	out := image.NewGray(image.Rect(0, 0, width, height))
	inStride := len(data) / height

	for i := 0; i < height; i++ {
		oIndex := i * out.Stride
		iIndex := i * inStride
		for j := 0; j < width; j++ {
			out.Pix[oIndex] = data[iIndex]
			oIndex++
			iIndex += 2
		}
	}

	return out, nil
}

// DecodeRGB converts packed RGB24 to BT.601 luma.
func DecodeRGB(data []byte, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 || len(data) < width*height*3 {
		return nil, ErrShortBuffer
	}
	out := image.NewGray(image.Rect(0, 0, width, height))
	inStride := len(data) / height

	for i := 0; i < height; i++ {
		oIndex := i * out.Stride
		iIndex := i * inStride
		for j := 0; j < width; j++ {
			r := uint32(data[iIndex])
			g := uint32(data[iIndex+1])
			b := uint32(data[iIndex+2])
			out.Pix[oIndex] = uint8((299*r + 587*g + 114*b + 500) / 1000)
			oIndex++
			iIndex += 3
		}
	}

	return out, nil
}

// DecodeJPEG decodes an MJPEG or JPEG frame straight to grayscale. The
// frame's own dimensions win over width and height.
func DecodeJPEG(data []byte, _, _ int) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, ErrShortBuffer
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadGrayscale)
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("decode jpeg: empty image")
	}

	return MatToGray(mat)
}

// MatToGray copies a single channel 8-bit Mat into an image.Gray.
func MatToGray(mat gocv.Mat) (*image.Gray, error) {
	if mat.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("expected 8-bit single channel mat, got %v", mat.Type())
	}
	pix, err := mat.DataPtrUint8()
	if err != nil {
		return nil, err
	}
	w, h := mat.Cols(), mat.Rows()
	out := image.NewGray(image.Rect(0, 0, w, h))
	step := mat.Step()
	for y := 0; y < h; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], pix[y*step:y*step+w])
	}

	return out, nil
}
