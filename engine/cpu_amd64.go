//go:build amd64

package engine

import "golang.org/x/sys/cpu"

// hostFeatures lists the vector extensions of the host in LLVM's
// target-feature syntax.
func hostFeatures() []string {
	var fs []string
	add := func(ok bool, name string) {
		if ok {
			fs = append(fs, "+"+name)
		}
	}
	add(cpu.X86.HasSSE41, "sse4.1")
	add(cpu.X86.HasSSE42, "sse4.2")
	add(cpu.X86.HasPOPCNT, "popcnt")
	add(cpu.X86.HasAVX, "avx")
	add(cpu.X86.HasAVX2, "avx2")
	add(cpu.X86.HasFMA, "fma")
	add(cpu.X86.HasBMI2, "bmi2")
	// AVX-512 is enabled only as a whole so the backend never sees a
	// partial set.
	if cpu.X86.HasAVX512F && cpu.X86.HasAVX512DQ && cpu.X86.HasAVX512BW && cpu.X86.HasAVX512VL {
		fs = append(fs, "+avx512f", "+avx512dq", "+avx512bw", "+avx512vl")
	}
	return fs
}
