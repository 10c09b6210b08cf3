package edl

import (
	"fmt"
	"regexp"
	"strconv"
)

// timecodeRegex matches one HH:MM:SS:FF or HH:MM:SS;FF field.
var timecodeRegex = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})([:;])(\d{2})$`)

// FramesFromTimecode parses an HH:MM:SS:FF (or ;FF for drop-frame) timecode
// into an absolute frame count at the given integer frame rate. nlecore
// keeps exact integer frame counts throughout, so unlike an
// opentime.RationalTime conversion this never round-trips through a float
// rate: fpsNum/fpsDen must reduce to a whole number of frames per second.
func FramesFromTimecode(tc string, fpsNum, fpsDen uint32) (int64, error) {
	m := timecodeRegex.FindStringSubmatch(tc)
	if m == nil {
		return 0, fmt.Errorf("edl: invalid timecode %q", tc)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	ss, _ := strconv.Atoi(m[3])
	ff, _ := strconv.Atoi(m[5])

	fps := framesPerSecond(fpsNum, fpsDen)
	return int64(hh)*3600*int64(fps) + int64(mm)*60*int64(fps) + int64(ss)*int64(fps) + int64(ff), nil
}

// FramesToTimecode formats an absolute frame count as HH:MM:SS:FF.
func FramesToTimecode(frames int64, fpsNum, fpsDen uint32) string {
	fps := framesPerSecond(fpsNum, fpsDen)
	if fps <= 0 {
		fps = 24
	}
	if frames < 0 {
		frames = 0
	}
	ff := frames % int64(fps)
	totalSeconds := frames / int64(fps)
	ss := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	mm := totalMinutes % 60
	hh := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hh, mm, ss, ff)
}

// framesPerSecond rounds fpsNum/fpsDen to the nearest whole frame rate, per
// NTSC convention (24000/1001 -> 24, 30000/1001 -> 30).
func framesPerSecond(num, den uint32) int {
	if den == 0 {
		return 24
	}
	return int((float64(num)/float64(den))+0.5)
}
