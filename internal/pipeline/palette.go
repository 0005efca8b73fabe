package pipeline

import (
	"fmt"
	"image"
	"sort"

	"github.com/disintegration/imaging"
)

// Palette returns up to max dominant colors of the image as ordered hex
// strings, most frequent first. The image is shrunk before counting so the
// histogram stays cheap regardless of source size, and channels are bucketed
// to 4 bits so near-identical shades collapse into one entry.
func Palette(img image.Image, max int) []string {
	if img == nil || max <= 0 {
		return nil
	}
	small := imaging.Resize(img, 64, 0, imaging.NearestNeighbor)
	bounds := small.Bounds()

	type bucket struct {
		key   uint32
		count int
		r     uint64
		g     uint64
		b     uint64
	}
	counts := map[uint32]*bucket{}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := small.At(x, y).RGBA()
			if a < 0x8000 {
				continue
			}
			r8, g8, b8 := r>>8, g>>8, b>>8
			key := uint32(r8>>4)<<8 | uint32(g8>>4)<<4 | uint32(b8>>4)
			entry, ok := counts[key]
			if !ok {
				entry = &bucket{key: key}
				counts[key] = entry
			}
			entry.count++
			entry.r += uint64(r8)
			entry.g += uint64(g8)
			entry.b += uint64(b8)
		}
	}
	if len(counts) == 0 {
		return nil
	}

	buckets := make([]*bucket, 0, len(counts))
	for _, entry := range counts {
		buckets = append(buckets, entry)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].count != buckets[j].count {
			return buckets[i].count > buckets[j].count
		}
		return buckets[i].key < buckets[j].key
	})

	if len(buckets) > max {
		buckets = buckets[:max]
	}
	out := make([]string, 0, len(buckets))
	for _, entry := range buckets {
		n := uint64(entry.count)
		out = append(out, fmt.Sprintf("#%02X%02X%02X", entry.r/n, entry.g/n, entry.b/n))
	}
	return out
}
