package nn

import "fmt"

// FilterParams controls which raw NN detections count as a sighting.
type FilterParams struct {
	Classes        map[int]bool // Class indices that we're interested in
	MinConfidence  float32      // Discard objects below this confidence
	MinBoxFraction float32      // Discard objects whose box area is less than this fraction of the frame area (rejects distant specks)
}

// BuildClassFilter maps a list of class names (eg ["bird"]) onto the class
// indices of the model. Unknown class names are an error, because they almost
// certainly indicate a config typo.
func BuildClassFilter(modelClasses, wanted []string) (map[int]bool, error) {
	byName := map[string]int{}
	for i, class := range modelClasses {
		byName[class] = i
	}
	filter := map[int]bool{}
	for _, w := range wanted {
		idx, ok := byName[w]
		if !ok {
			return nil, fmt.Errorf("Class '%v' is not produced by this model", w)
		}
		filter[idx] = true
	}
	return filter, nil
}

// FilterDetections returns the objects that pass the class, confidence and
// minimum size tests. Boxes are expected to be in frame coordinates
// (imageWidth x imageHeight).
func FilterDetections(objects []ObjectDetection, imageWidth, imageHeight int, params FilterParams) []ObjectDetection {
	frameArea := float32(imageWidth * imageHeight)
	passed := []ObjectDetection{}
	for _, obj := range objects {
		if !params.Classes[obj.Class] {
			continue
		}
		if obj.Confidence < params.MinConfidence {
			continue
		}
		if frameArea > 0 && float32(obj.Box.Area())/frameArea < params.MinBoxFraction {
			continue
		}
		passed = append(passed, obj)
	}
	return passed
}
