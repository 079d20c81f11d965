package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"runtime"
	"runtime/pprof"
)

// startProfiling starts a CPU profile when cpuProfile is set. The returned
// function stops it and writes the heap profile when memProfile is set.
// Both files are written under savePath.
func startProfiling(savePath, cpuProfile, memProfile string, logger *slog.Logger) (func() error, error) {
	var cpuFile *os.File
	if cpuProfile != "" {
		cpuProfPath := path.Join(savePath, cpuProfile)
		logger.Info("profiling cpu", "path", cpuProfPath)
		f, err := os.Create(cpuProfPath)
		if err != nil {
			return nil, fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not start CPU profile: %w", err)
		}
		cpuFile = f
	}

	return func() error {
		if cpuFile != nil {
			pprof.StopCPUProfile()
			cpuFile.Close()
		}
		if memProfile == "" {
			return nil
		}
		memProfPath := path.Join(savePath, memProfile)
		logger.Info("profiling memory", "path", memProfPath)
		f, err := os.Create(memProfPath)
		if err != nil {
			return fmt.Errorf("could not create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("could not write memory profile: %w", err)
		}
		return nil
	}, nil
}
