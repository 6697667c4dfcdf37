package library

// QualityLabel classifies a video by its pixel width.
func QualityLabel(width int) string {
	switch {
	case width > 2000:
		return "4K"
	case width > 1500:
		return "HD"
	case width > 0:
		return "HDTV"
	default:
		return "UNK"
	}
}
