//go:build arm64

package engine

import "golang.org/x/sys/cpu"

// hostFeatures lists the vector extensions of the host in LLVM's
// target-feature syntax. NEON is part of the ARMv8-A baseline.
func hostFeatures() []string {
	var fs []string
	if cpu.ARM64.HasASIMD {
		fs = append(fs, "+neon")
	}
	if cpu.ARM64.HasFPHP && cpu.ARM64.HasASIMDHP {
		fs = append(fs, "+fullfp16")
	}
	if cpu.ARM64.HasSVE {
		fs = append(fs, "+sve")
	}
	return fs
}
