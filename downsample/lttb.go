/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package downsample implements the Largest-Triangle-Three-Buckets
// reduction described in spec.md §4.7, used by the core to bound the
// number of points the host draws per frame regardless of a log's
// record count.
package downsample

import "github.com/classicminidiy/ultralog/logmodel"

// Point is one surviving (time, value) sample. Only present, finite
// cells ever become a Point — an absent cell is never a downsampling
// candidate and never appears in the output, per spec.md §4.7.
type Point struct {
	T float64
	V float64
}

// LTTB reduces a channel's (time, cell) series to at most budget
// points using the Largest-Triangle-Three-Buckets algorithm: absent
// cells are dropped from the candidate series first (they are never
// selected and a bucket made up entirely of them contributes nothing),
// then the classic bucketed largest-triangle selection runs over the
// remaining finite points. The first and last finite points are
// retained whenever budget is at least 2; a budget below 3 leaves no
// room for a bucket, so only the endpoints that fit are returned (the
// first point for a budget of 1, none for 0). Deterministic for a
// given input and budget; O(R) time, and O(R) additional space, since
// the finite candidate series is copied out before bucketing; if the
// finite series already has at most budget points, it is returned
// verbatim.
func LTTB(time []float64, cells []logmodel.Cell, budget int) []Point {
	finite := finitePoints(time, cells)
	n := len(finite)
	if n == 0 {
		return nil
	}
	if n <= budget {
		return finite
	}
	if budget < 3 {
		ends := []Point{finite[0], finite[n-1]}
		if budget < 0 {
			budget = 0
		}
		return ends[:budget]
	}

	out := make([]Point, 0, budget)
	out = append(out, finite[0])

	numBuckets := budget - 2
	a := 0 // index into finite of the last point selected

	for i := 0; i < numBuckets; i++ {
		rs, re := bucketRange(i, n, numBuckets)
		avgT, avgV := bucketAverage(finite, avgBucketRange(i, n, numBuckets))

		maxArea := -1.0
		maxIdx := rs
		for j := rs; j < re; j++ {
			area := triangleArea(finite[a], finite[j], Point{T: avgT, V: avgV})
			if area > maxArea {
				maxArea = area
				maxIdx = j
			}
		}
		out = append(out, finite[maxIdx])
		a = maxIdx
	}

	out = append(out, finite[n-1])
	return out
}

func finitePoints(time []float64, cells []logmodel.Cell) []Point {
	out := make([]Point, 0, len(cells))
	for i, c := range cells {
		if v, ok := c.Numeric(); ok {
			out = append(out, Point{T: time[i], V: v})
		}
	}
	return out
}

// bucketRange returns the half-open [start, end) range of finite's
// interior indices belonging to bucket i of numBuckets, partitioning
// [1, n-1) into numBuckets contiguous as-equal-as-possible spans via
// integer division (kept integer-only so the partition is identical
// across platforms, not subject to floating-point rounding).
func bucketRange(i, n, numBuckets int) (int, int) {
	interior := n - 2
	start := 1 + i*interior/numBuckets
	end := 1 + (i+1)*interior/numBuckets
	if i == numBuckets-1 {
		end = n - 1
	}
	return start, end
}

// avgBucketRange returns the range whose average anchors the triangle
// area computation for bucket i: the following bucket's span, or just
// the final point when i is the last bucket.
func avgBucketRange(i, n, numBuckets int) (int, int) {
	if i == numBuckets-1 {
		return n - 1, n
	}
	return bucketRange(i+1, n, numBuckets)
}

func bucketAverage(pts []Point, start, end int) (float64, float64) {
	if end <= start {
		p := pts[start]
		return p.T, p.V
	}
	var sumT, sumV float64
	for i := start; i < end; i++ {
		sumT += pts[i].T
		sumV += pts[i].V
	}
	count := float64(end - start)
	return sumT / count, sumV / count
}

func triangleArea(a, b, c Point) float64 {
	area := (a.T-c.T)*(b.V-a.V) - (a.T-b.T)*(c.V-a.V)
	if area < 0 {
		return -area
	}
	return area
}
