package layout

// ContainFit returns the largest size with img's aspect ratio that fits in
// box. Degenerate input yields a zero Size.
func ContainFit(box Box, img Size) Size {
	boxSize := box.Size()
	if boxSize.IsZero() || img.IsZero() {
		return Size{}
	}

	imgAspect := img.AspectRatio()
	if imgAspect > boxSize.AspectRatio() {
		return Size{Width: box.Width, Height: box.Width / imgAspect}
	}
	return Size{Width: box.Height * imgAspect, Height: box.Height}
}

// Center returns the origin that centers fitted within box.
func Center(box Box, fitted Size) Point {
	return Point{
		X: box.X + (box.Width-fitted.Width)/2,
		Y: box.Y + (box.Height-fitted.Height)/2,
	}
}
