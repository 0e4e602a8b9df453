// Package encoders probes the transcoder's hardware-acceleration support
// once at startup. The probe is best effort: any failure degrades to the
// software path and never aborts the daemon.
package encoders

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"time"

	"fencecast/internal/logging"
)

const probeTimeout = 10 * time.Second

// hardwareEncoder is the encoder the workers use when acceleration is
// available; the probe scans for exactly this name.
const hardwareEncoder = "h264_nvenc"

// Capabilities is the result of the startup probe.
type Capabilities struct {
	HasHardware bool   `json:"has_hardware"`
	DeviceName  string `json:"device_name"`
}

// Detect queries the transcoder binary for hardware encoder availability and
// the host inventory for a device name. It never returns an error; failures
// yield the software path with an unknown device.
func Detect(ctx context.Context, binaryPath string) Capabilities {
	logger := logging.GetLogger("encoders")
	caps := Capabilities{DeviceName: "unknown"}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binaryPath, "-hide_banner", "-encoders").Output()
	if err != nil {
		logger.Warn("Encoder probe failed, using software encoder", "error", err)
		return caps
	}

	if !hasEncoder(string(out), hardwareEncoder) {
		logger.Info("Hardware encoder not available", "encoder", hardwareEncoder)
		return caps
	}
	caps.HasHardware = true

	if name := deviceName(ctx); name != "" {
		caps.DeviceName = name
	}
	logger.Info("Hardware encoder available", "encoder", hardwareEncoder, "device", caps.DeviceName)
	return caps
}

// hasEncoder scans `ffmpeg -encoders` output for the named encoder.
func hasEncoder(output, name string) bool {
	scanner := bufio.NewScanner(strings.NewReader(output))
	started := false
	for scanner.Scan() {
		line := scanner.Text()
		if !started {
			started = strings.Contains(line, "Encoders:")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// deviceName asks the accelerator inventory tool for a human-readable name.
func deviceName(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Output()
	if err != nil {
		return ""
	}
	// One GPU per line; the first is the one the encoder will use.
	name, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(name)
}
