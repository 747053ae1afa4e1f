package nn

// ObjectDetection is an object that a neural network has found in an image
type ObjectDetection struct {
	Class      int     `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// ResizeTransform describes the scaling that was applied to an image before
// it was sent to the NN, so that detections can be mapped back into the
// coordinate space of the original image.
type ResizeTransform struct {
	ScaleX float32
	ScaleY float32
}

func IdentityResizeTransform() ResizeTransform {
	return ResizeTransform{ScaleX: 1, ScaleY: 1}
}

// ApplyBackward maps detection boxes from NN coordinates back to the
// coordinates of the image that was resized.
func (t ResizeTransform) ApplyBackward(objects []ObjectDetection) {
	for i := range objects {
		box := &objects[i].Box
		box.X = int(float32(box.X)/t.ScaleX + 0.5)
		box.Y = int(float32(box.Y)/t.ScaleY + 0.5)
		box.Width = int(float32(box.Width)/t.ScaleX + 0.5)
		box.Height = int(float32(box.Height)/t.ScaleY + 0.5)
	}
}
