package facematch

// BestMatch finds the candidate region that overlaps target the most.
// It returns the candidate index and its IoU, or -1 when no candidate reaches
// minIoU.
func BestMatch(target Region, candidates []Region, minIoU float64) (int, float64) {
	best := -1
	bestIoU := 0.0
	for i, c := range candidates {
		iou := IoU(target, c)
		if iou >= minIoU && iou > bestIoU {
			best = i
			bestIoU = iou
		}
	}
	return best, bestIoU
}

// Detection is a face located by the detector, without identity.
type Detection struct {
	Region     Region
	Confidence float64   // detector score in [0, 1]
	Embedding  []float32 // face embedding, if the detector computed one
}
