package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
)

const (
	defaultTarget       = "../ports/unix/build-standard/micropython"
	defaultDevice       = "/dev/ttyACM0"
	defaultBaudRate     = 115200
	defaultResultsTopic = "test-reports"
)

// Default directories globbed for *.py test files, by execution mode.
var (
	localTestDirs  = []string{"basics", "micropython", "float", "import", "io", "misc", "unicode", "extmod", "unix"}
	deviceTestDirs = []string{"basics", "float", "pyb", "extmod"}
)

// ciExclusions lists tests too heavy for the resource-constrained CI runners,
// skipped unconditionally when the CI environment variable is "true".
var ciExclusions = map[string]struct{}{
	"misc/recursive_data.py":     {},
	"misc/recursive_iternext.py": {},
}

type appConfig struct {
	Pyboard        bool
	Device         string
	BaudRate       int
	DockerImage    string
	WASMModule     string
	Reference      string
	Target         string
	TestDirs       []string
	Files          []string
	CISkips        bool
	ResultsBrokers []string
	ResultsTopic   string
}

// stringListFlag accumulates repeated occurrences of a flag.
type stringListFlag []string

func (f *stringListFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *stringListFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// loadAppConfig parses flags and environment into a single configuration,
// with precedence flag > environment > default.
func loadAppConfig(args []string) (appConfig, error) {
	fs := flag.NewFlagSet("mptest", flag.ContinueOnError)

	var dirs stringListFlag
	pyboard := fs.Bool("pyboard", false, "run tests on a serial-attached device instead of a local executable")
	device := fs.String("device", defaultDevice, "serial port of the attached device")
	baudRate := fs.Int("baudrate", defaultBaudRate, "baud rate of the serial connection")
	dockerImage := fs.String("docker", "", "run the target interpreter inside the given container image")
	wasmModule := fs.String("wasm", "", "run a WASI build of the target interpreter from the given module file")
	reference := fs.String("reference", "", "path to the reference interpreter (overrides MICROPY_CPYTHON3)")
	target := fs.String("target", "", "path to the target executable (overrides MICROPY_MICROPYTHON)")
	fs.Var(&dirs, "d", "directory to glob for *.py test files (repeatable)")
	fs.Var(&dirs, "test-dirs", "alias for -d")

	if err := fs.Parse(args); err != nil {
		return appConfig{}, err
	}

	cfg := appConfig{
		Pyboard:        *pyboard,
		Device:         *device,
		BaudRate:       *baudRate,
		DockerImage:    *dockerImage,
		WASMModule:     *wasmModule,
		Reference:      overrideOrEnv(*reference, "MICROPY_CPYTHON3", defaultReference()),
		Target:         overrideOrEnv(*target, "MICROPY_MICROPYTHON", defaultTarget),
		Files:          fs.Args(),
		CISkips:        os.Getenv("CI") == "true",
		ResultsBrokers: parseBrokerList(os.Getenv("MPTEST_RESULTS_BROKERS")),
		ResultsTopic:   envOrDefault("MPTEST_RESULTS_TOPIC", defaultResultsTopic),
	}

	switch {
	case len(dirs) > 0:
		cfg.TestDirs = dirs
	case cfg.Pyboard:
		cfg.TestDirs = deviceTestDirs
	default:
		cfg.TestDirs = localTestDirs
	}

	if err := cfg.validate(); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

func (c appConfig) validate() error {
	selected := 0
	if c.Pyboard {
		selected++
	}
	if c.DockerImage != "" {
		selected++
	}
	if c.WASMModule != "" {
		selected++
	}
	if selected > 1 {
		return fmt.Errorf("at most one of --pyboard, --docker and --wasm may be given")
	}
	return nil
}

// defaultReference picks the reference interpreter name for this platform.
func defaultReference() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

func overrideOrEnv(flagValue, envKey, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	return envOrDefault(envKey, fallback)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseBrokerList(raw string) []string {
	fields := strings.Split(raw, ",")
	brokers := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil
	}
	return brokers
}
