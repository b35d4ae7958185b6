package embedpipe

import (
	"math"
	"strings"
)

// ChunkOptions configures ChunkEntity.
type ChunkOptions struct {
	MaxChars      int
	OverlapChars  int
	MinChunkChars int
}

func (o *ChunkOptions) applyDefaults() {
	if o.MaxChars <= 0 {
		o.MaxChars = 2000
	}
	if o.OverlapChars < 0 {
		o.OverlapChars = 0
	}
	if o.OverlapChars >= o.MaxChars {
		o.OverlapChars = o.MaxChars / 4
	}
	if o.MinChunkChars <= 0 {
		o.MinChunkChars = 200
	}
}

// Chunk is one window of an entity's content.
type Chunk struct {
	Index       int
	StartOffset int
	EndOffset   int
	Text        string
}

// ChunkEntity splits content into sequential, overlapping chunks: a single
// chunk when content already fits, otherwise the largest window ending at
// a paragraph boundary (falling back to a line boundary, then a hard cut),
// with the next window starting overlap_chars bytes before the previous
// window's end. A
// trailing chunk smaller than min_chunk_chars is merged into its
// predecessor. Every byte of content appears in at least one chunk.
func ChunkEntity(content string, opt ChunkOptions) []Chunk {
	opt.applyDefaults()
	n := len(content)
	if n == 0 {
		return nil
	}
	if n <= opt.MaxChars {
		return []Chunk{{Index: 0, StartOffset: 0, EndOffset: n, Text: content}}
	}

	var chunks []Chunk
	start := 0
	idx := 0
	for start < n {
		maxEnd := start + opt.MaxChars
		var end int
		if maxEnd >= n {
			end = n
		} else {
			end = boundaryEnd(content, start, maxEnd)
		}
		chunks = append(chunks, Chunk{Index: idx, StartOffset: start, EndOffset: end, Text: content[start:end]})
		idx++
		if end >= n {
			break
		}
		next := end - opt.OverlapChars
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return mergeTrailing(chunks, content, opt.MinChunkChars)
}

// boundaryEnd finds the largest end <= maxEnd ending at a paragraph break,
// falling back to a line break, falling back to maxEnd itself (hard cut).
func boundaryEnd(content string, start, maxEnd int) int {
	window := content[start:maxEnd]
	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return start + i + 2
	}
	if i := strings.LastIndex(window, "\n"); i > 0 {
		return start + i + 1
	}
	return maxEnd
}

func mergeTrailing(chunks []Chunk, content string, minChars int) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	last := chunks[len(chunks)-1]
	if last.EndOffset-last.StartOffset >= minChars {
		return chunks
	}
	prev := chunks[len(chunks)-2]
	merged := Chunk{
		Index:       prev.Index,
		StartOffset: prev.StartOffset,
		EndOffset:   last.EndOffset,
		Text:        content[prev.StartOffset:last.EndOffset],
	}
	return append(chunks[:len(chunks)-2], merged)
}

// EstimateChunkCount returns max(1, ceil((length-overlap)/(max_chars-overlap))).
func EstimateChunkCount(length int, opt ChunkOptions) int {
	opt.applyDefaults()
	denom := opt.MaxChars - opt.OverlapChars
	if denom <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(length-opt.OverlapChars) / float64(denom)))
	if n < 1 {
		n = 1
	}
	return n
}
