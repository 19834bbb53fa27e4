package video

import "strconv"

// Codec describes the output video encoding shared by every render strategy.
type Codec struct {
	Name        string
	Preset      string
	PixelFormat string
	AudioCodec  string
	// Quality is CRF for libx264, CQ for nvenc and bitrate/100 kbit/s for
	// videotoolbox. Zero leaves the encoder default.
	Quality int
	Threads int
}

// Args returns the codec flags in ffmpeg order.
func (c Codec) Args() []string {
	name := c.Name
	if name == "" {
		name = "libx264"
	}
	args := []string{"-c:v", name}

	switch name {
	case "h264_videotoolbox":
		if c.Quality > 0 {
			args = append(args, "-b:v", strconv.Itoa(c.Quality*100)+"k")
		}
	case "h264_nvenc":
		if c.Quality > 0 {
			args = append(args, "-cq", strconv.Itoa(c.Quality))
		}
	default:
		preset := c.Preset
		if preset == "" {
			preset = "medium"
		}
		args = append(args, "-preset", preset)
		if c.Quality > 0 {
			args = append(args, "-crf", strconv.Itoa(c.Quality))
		}
	}

	pix := c.PixelFormat
	if pix == "" {
		pix = "yuv420p"
	}
	args = append(args, "-pix_fmt", pix)
	if c.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(c.Threads))
	}
	return args
}

// AudioArgs returns the audio codec flags.
func (c Codec) AudioArgs() []string {
	a := c.AudioCodec
	if a == "" {
		a = "aac"
	}
	return []string{"-c:a", a}
}
