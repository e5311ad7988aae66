package pkg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"go.uber.org/zap"
)

// Profiler records a CPU profile for the lifetime of a run and writes heap and
// goroutine profiles when it stops.
type Profiler struct {
	dir    string
	cpu    *os.File
	logger *zap.Logger
}

func StartProfiler(dir string, logger *zap.Logger) (*Profiler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("profile dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "cpu.prof"))
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}
	logger.Info("CPU profiling started", zap.String("dir", dir))
	return &Profiler{dir: dir, cpu: f, logger: logger}, nil
}

func (p *Profiler) Stop() error {
	pprof.StopCPUProfile()
	err := p.cpu.Close()

	runtime.GC()
	for _, name := range []string{"heap", "goroutine"} {
		err = errors.Join(err, p.write(name))
	}
	if err == nil {
		p.logger.Info("profiles saved", zap.String("dir", p.dir))
	}
	return err
}

func (p *Profiler) write(name string) error {
	f, err := os.Create(filepath.Join(p.dir, name+".prof"))
	if err != nil {
		return fmt.Errorf("could not create %s profile: %w", name, err)
	}
	defer f.Close()
	if err := pprof.Lookup(name).WriteTo(f, 0); err != nil {
		return fmt.Errorf("could not write %s profile: %w", name, err)
	}
	return nil
}
