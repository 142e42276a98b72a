package img

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"math"

	"github.com/sunshineplan/imgconv"
)

// Downscale decodes any supported image format and re-encodes it as JPEG,
// shrinking it first when it exceeds maxMPXS megapixels.
func Downscale(imageData []byte, maxMPXS float64) ([]byte, error) {
	img, err := imgconv.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %v", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	currentMPXS := float64(width*height) / 1000000.0

	if currentMPXS > maxMPXS {
		ratio := math.Sqrt(maxMPXS / currentMPXS)
		img = imgconv.Resize(img, &imgconv.ResizeOption{
			Width:  max(1, int(float64(width)*ratio)),
			Height: max(1, int(float64(height)*ratio)),
		})
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("error encoding JPEG: %v", err)
	}

	return buf.Bytes(), nil
}
