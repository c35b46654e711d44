package artwork

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png" // artwork CDNs occasionally serve PNG

	"github.com/nfnt/resize"

	"github.com/emmaly/nowplaying/musicstate"
)

// shrink downscales images larger than MaxDimension. Anything that cannot be
// decoded is passed through untouched.
func (c *Cache) shrink(data []byte) []byte {
	limit := c.opts.MaxDimension
	if limit == 0 {
		return data
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		musicstate.Debugf("Artwork not decodable, keeping original: %v", err)
		return data
	}

	b := img.Bounds()
	if uint(b.Dx()) <= limit && uint(b.Dy()) <= limit {
		return data
	}

	thumb := resize.Thumbnail(limit, limit, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 90}); err != nil {
		return data
	}
	return buf.Bytes()
}
