// Command bagit creates and validates BagIt bags from the command line.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/ndlib/bagit/bagit"
	"github.com/ndlib/bagit/bagitcfg"
	"github.com/ndlib/bagit/tagfile"
)

var (
	processes        = flag.Int("processes", 1, "Use multiple goroutines to calculate checksums faster")
	logPath          = flag.String("log", "", "The name of the log file (default: stderr)")
	quiet            = flag.Bool("quiet", false, "Suppress all progress information other than errors")
	configPath       = flag.String("config", "", "Path to a bagitrc.toml config file (default: ~/.bagitrc.toml)")
	validateFlag     = flag.Bool("validate", false, "Validate existing bags in the provided directories instead of creating new ones")
	fastFlag         = flag.Bool("fast", false, "Modify --validate to only check Payload-Oxum, not recompute fixity")
	completenessOnly = flag.Bool("completeness-only", false, "Modify --validate to check completeness without recomputing fixity")
	encodingFlag     = flag.String("encoding", "", "Tag-File-Character-Encoding to declare when creating a bag (default: UTF-8)")

	algFlags = map[string]*bool{
		"md5":    flag.Bool("md5", false, "Generate an MD5 manifest when creating a bag"),
		"sha1":   flag.Bool("sha1", false, "Generate a SHA-1 manifest when creating a bag"),
		"sha256": flag.Bool("sha256", false, "Generate a SHA-256 manifest when creating a bag"),
		"sha512": flag.Bool("sha512", false, "Generate a SHA-512 manifest when creating a bag"),
	}

	bagInfoFlags = make(map[string]*string, len(bagit.StandardBagInfoHeaders))

	usage = `
bagit [flags] directory...

By default, each directory is converted into a bag in place by moving any
existing files into the BagIt structure and creating the manifests and
other metadata. With --validate, each directory is instead opened as an
existing bag and checked for completeness and fixity.
`
)

func init() {
	for _, header := range bagit.StandardBagInfoHeaders {
		bagInfoFlags[header] = flag.String(strings.ToLower(header), "", "Set the "+header+" bag-info header")
	}
}

func main() {
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("cannot open log file %s: %v", *logPath, err)
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = bagitcfg.DefaultPath()
	}
	cfg, err := bagitcfg.Load(cfgPath)
	if err != nil {
		logger.Printf("warning: could not load config file %s: %v", cfgPath, err)
	}

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	procCount := *processes
	if !explicit["processes"] && cfg.Processes > 0 {
		procCount = cfg.Processes
	}

	algorithms := selectedAlgorithms(explicit)
	if len(algorithms) == 0 {
		algorithms = cfg.Algorithms
	}

	encoding := *encodingFlag
	if !explicit["encoding"] && cfg.Encoding != "" {
		encoding = cfg.Encoding
	}

	dirs := flag.Args()
	if len(dirs) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt)
	defer signal.Stop(interrupted)

	failed := false
	for _, dir := range dirs {
		if runOne(dir, procCount, algorithms, encoding, logger, interrupted) != nil {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// runOne processes one directory. A SIGINT received while it is running
// is logged but not acted on until the current create-or-validate
// operation finishes, so Ctrl-C can never interrupt a hashing pass
// partway through and leave a manifest half written; the command then
// exits with status 1 without processing any remaining directories.
func runOne(dir string, procCount int, algorithms []string, encoding string, logger *log.Logger, interrupted <-chan os.Signal) error {
	opLogger := logger
	if *quiet {
		opLogger = log.New(io.Discard, "", 0)
	}
	done := make(chan error, 1)
	go func() {
		if *validateFlag {
			done <- validateOne(dir, procCount, opLogger)
		} else {
			done <- makeOne(dir, procCount, algorithms, encoding, opLogger)
		}
	}()

	stop := false
	for {
		select {
		case err := <-done:
			if err != nil {
				logger.Printf("ERROR %s: %v", dir, err)
			} else if !*quiet {
				fmt.Printf("%s: ok\n", dir)
			}
			if stop {
				os.Exit(1)
			}
			return err
		case <-interrupted:
			stop = true
			logger.Printf("interrupt received, finishing current operation on %s before exiting", dir)
		}
	}
}

func makeOne(dir string, procCount int, algorithms []string, encoding string, logger *log.Logger) error {
	info := make(tagfile.Tags)
	for header, val := range bagInfoFlags {
		if *val != "" {
			info[header] = []string{*val}
		}
	}
	_, err := bagit.MakeBag(dir, bagit.MakeBagOptions{
		Info:      info,
		Processes: procCount,
		Checksums: algorithms,
		Encoding:  encoding,
		Logger:    logger,
	})
	return err
}

func validateOne(dir string, procCount int, logger *log.Logger) error {
	bag, err := bagit.Open(dir, logger)
	if err != nil {
		return err
	}
	return bag.Validate(bagit.ValidateOptions{
		Processes:        procCount,
		Fast:             *fastFlag,
		CompletenessOnly: *completenessOnly,
		Logger:           logger,
	})
}

func selectedAlgorithms(explicit map[string]bool) []string {
	var algs []string
	for _, name := range []string{"md5", "sha1", "sha256", "sha512"} {
		if explicit[name] && *algFlags[name] {
			algs = append(algs, name)
		}
	}
	return algs
}
