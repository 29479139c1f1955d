package facematch

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	// Calculate intersection.
	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	// Calculate union.
	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// IoU returns the Intersection over Union of two regions.
func IoU(a, b Region) float64 {
	return ComputeIoU(a.Corners(), b.Corners())
}

// Contains reports whether outer fully contains a non-empty inner region.
func Contains(outer, inner Region) bool {
	if inner.Empty() {
		return false
	}
	return inner.X >= outer.X-regionEpsilon &&
		inner.Y >= outer.Y-regionEpsilon &&
		inner.X+inner.Width <= outer.X+outer.Width+regionEpsilon &&
		inner.Y+inner.Height <= outer.Y+outer.Height+regionEpsilon
}

// IsDuplicate reports whether two regions of the same person on the same
// image mark the same face: IoU above iouThreshold, or one region fully
// containing the other.
func IsDuplicate(a, b Region, iouThreshold float64) bool {
	return IoU(a, b) > iouThreshold || Contains(a, b) || Contains(b, a)
}

// RegionFromPixelBBox converts a detector bbox [x1, y1, x2, y2] measured in
// pixels of an image of the given size into a clamped Region.
// Returns false for malformed input.
func RegionFromPixelBBox(bbox []float64, width, height int) (Region, bool) {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return Region{}, false
	}
	r := FromPixels(bbox[0], bbox[1], bbox[2]-bbox[0], bbox[3]-bbox[1], float64(width), float64(height))
	return r, !r.Empty()
}
