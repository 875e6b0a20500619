package encoder

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// HWAccelType represents a hardware acceleration type
type HWAccelType string

const (
	HWAccelNone         HWAccelType = "none"         // Software encoding (libx264)
	HWAccelAuto         HWAccelType = "auto"         // Auto-detect best available
	HWAccelNVENC        HWAccelType = "nvenc"        // NVIDIA NVENC
	HWAccelQSV          HWAccelType = "qsv"          // Intel Quick Sync Video
	HWAccelVAAPI        HWAccelType = "vaapi"        // VA-API (AMD, Intel, older hardware)
	HWAccelVideoToolbox HWAccelType = "videotoolbox" // Apple VideoToolbox (macOS)
)

// vaapiDevice is the render node used for VA-API encoding.
const vaapiDevice = "/dev/dri/renderD128"

// HWEncoder represents a detected hardware encoder
type HWEncoder struct {
	Name        string      // Encoder name (e.g., "h264_nvenc")
	Type        HWAccelType // Hardware acceleration type
	Available   bool        // Whether a probe encode succeeded
	Description string      // Human-readable description
}

type encoderSpec struct {
	name      string
	accelType HWAccelType
	desc      string
}

// linuxEncoderPriority defines the encoder preference order for Linux.
// VAAPI comes after the vendor encoders as a broad fallback.
var linuxEncoderPriority = []encoderSpec{
	{"h264_nvenc", HWAccelNVENC, "NVIDIA NVENC"},
	{"h264_qsv", HWAccelQSV, "Intel Quick Sync Video"},
	{"h264_vaapi", HWAccelVAAPI, "VA-API"},
}

var macOSEncoderPriority = []encoderSpec{
	{"h264_videotoolbox", HWAccelVideoToolbox, "Apple VideoToolbox"},
}

// ParseHWAccel validates a --hwaccel value.
func ParseHWAccel(s string) (HWAccelType, bool) {
	switch t := HWAccelType(strings.ToLower(s)); t {
	case "":
		return HWAccelNone, true
	case HWAccelNone, HWAccelAuto, HWAccelNVENC, HWAccelQSV, HWAccelVAAPI, HWAccelVideoToolbox:
		return t, true
	}
	return "", false
}

// deviceArgs are the global options an encoder needs before any input.
func (h *HWEncoder) deviceArgs() []string {
	if h != nil && h.Type == HWAccelVAAPI {
		return []string{"-vaapi_device", vaapiDevice}
	}
	return nil
}

// videoArgs selects the codec and its pixel format handling.
func (h *HWEncoder) videoArgs() []string {
	if h == nil {
		return []string{"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-pix_fmt", "yuv420p"}
	}
	switch h.Type {
	case HWAccelVAAPI:
		return []string{"-vf", "format=nv12,hwupload", "-c:v", h.Name}
	case HWAccelQSV:
		return []string{"-c:v", h.Name, "-pix_fmt", "nv12"}
	case HWAccelNVENC:
		return []string{"-c:v", h.Name, "-preset", "p4", "-pix_fmt", "yuv420p"}
	default:
		return []string{"-c:v", h.Name, "-pix_fmt", "yuv420p"}
	}
}

// probeEncoder runs a tiny encode to the null muxer. Device presence alone
// is not enough: a GPU may expose a device without the H.264 encoder.
var probeEncoder = func(ffmpeg string, enc *HWEncoder) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	args := []string{"-hide_banner", "-v", "quiet"}
	args = append(args, enc.deviceArgs()...)
	args = append(args, "-f", "lavfi", "-i", "color=c=black:s=256x256:d=0.1", "-frames:v", "1")
	args = append(args, enc.videoArgs()...)
	args = append(args, "-f", "null", "-")

	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	// libva logs to stderr on its own unless silenced
	cmd.Env = append(os.Environ(), "LIBVA_MESSAGING_LEVEL=0")
	return cmd.Run() == nil
}

// DetectHWEncoders probes for available hardware encoders
// Returns a list of detected encoders in priority order
func DetectHWEncoders() []HWEncoder {
	var priority []encoderSpec
	switch runtime.GOOS {
	case "darwin":
		priority = macOSEncoderPriority
	default:
		priority = linuxEncoderPriority
	}

	ffmpeg, err := exec.LookPath("ffmpeg")
	encoders := make([]HWEncoder, 0, len(priority))
	for _, spec := range priority {
		enc := HWEncoder{
			Name:        spec.name,
			Type:        spec.accelType,
			Description: spec.desc,
		}
		if err == nil {
			enc.Available = probeEncoder(ffmpeg, &enc)
		}
		encoders = append(encoders, enc)
	}
	return encoders
}

// SelectBestEncoder returns the best available encoder based on priority
// If requestedType is HWAccelAuto, it selects the first available hardware encoder
// If requestedType is HWAccelNone, it returns nil (use software)
// Otherwise, it attempts to use the requested type if available
func SelectBestEncoder(requestedType HWAccelType) *HWEncoder {
	if requestedType == HWAccelNone || requestedType == "" {
		return nil
	}
	return selectFrom(DetectHWEncoders(), requestedType)
}

func selectFrom(encoders []HWEncoder, requestedType HWAccelType) *HWEncoder {
	for i := range encoders {
		if !encoders[i].Available {
			continue
		}
		if requestedType == HWAccelAuto || encoders[i].Type == requestedType {
			return &encoders[i]
		}
	}
	return nil
}

// GetEncoderStatus returns a human-readable status of all hardware encoders
func GetEncoderStatus() string {
	var sb strings.Builder
	sb.WriteString("Hardware Encoder Status:\n")
	for _, enc := range DetectHWEncoders() {
		status := "not available"
		if enc.Available {
			status = "available"
		}
		sb.WriteString("  " + enc.Description + " (" + enc.Name + "): " + status + "\n")
	}
	return sb.String()
}
