package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

func main() {
	var input, output, configPath, scriptPath string
	var serve, watch bool

	flag.StringVar(&input, "i", "", "Input image or directory of images")
	flag.StringVar(&input, "input", "", "Input image or directory of images")
	flag.StringVar(&output, "o", "", "Output file (.png or .pdf) or directory (default [export] dir for directories)")
	flag.StringVar(&output, "output", "", "Output file (.png or .pdf) or directory (default [export] dir for directories)")
	flag.StringVar(&scriptPath, "script", "", "Edit script applied before export")
	flag.StringVar(&configPath, "config", "config.toml", "Path to config file (TOML)")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP coloring service")
	flag.BoolVar(&watch, "watch", false, "With --serve, reload the catalog when its files change")
	flag.Parse()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if serve {
		if err := runServeMode(cfg, watch); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if output == "" && input != "" {
		if info, err := os.Stat(input); err == nil && info.IsDir() {
			output = cfg.Export.Dir
		}
	}

	if input == "" || output == "" {
		fmt.Fprintln(os.Stderr, "Usage: GoColorea -i <image> -o <out.png|out.pdf> [-script edits.txt] [--config config.toml]")
		fmt.Fprintln(os.Stderr, "       GoColorea -i <dir> -o <dir> [-script edits.txt] [--config config.toml]")
		fmt.Fprintln(os.Stderr, "       GoColorea --serve [--watch] [--config config.toml]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var cmds []Command
	if scriptPath != "" {
		cmds, err = loadScript(scriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	info, err := os.Stat(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: input path '%s' does not exist.\n", input)
		os.Exit(1)
	}

	if info.IsDir() {
		err = processDirectory(input, output, cmds, cfg)
	} else {
		err = processSingleFile(input, output, cmds, cfg)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadScript(path string) ([]Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cmds, err := ParseScript(f)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return cmds, nil
}

func isImageFile(path string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(path)))
}

// editImage loads inputFile into a session and replays cmds on it.
func editImage(inputFile string, cmds []Command) (*Session, ScriptResult, error) {
	s := NewSession()
	src := DirSource{Root: filepath.Dir(inputFile)}
	if err := s.LoadFrom(context.Background(), src, filepath.Base(inputFile)); err != nil {
		return nil, ScriptResult{}, err
	}
	return s, RunScript(s, cmds), nil
}

func exportSession(s *Session, outputFile, title string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(outputFile), ".pdf") {
		return WriteSheetFile(outputFile, s.Buffer(), cfg.SheetEncoder(title), cfg.Export.Validate)
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	if err := s.Export(PNGEncoder{}, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func processSingleFile(inputFile, outputFile string, cmds []Command, cfg *Config) error {
	if !isImageFile(inputFile) {
		return fmt.Errorf("input file '%s' is not a supported image", inputFile)
	}
	if info, err := os.Stat(outputFile); err == nil && info.IsDir() {
		return fmt.Errorf("input is a file, but output '%s' is a directory; specify an output file path", outputFile)
	}
	ext := strings.ToLower(filepath.Ext(outputFile))
	if ext != ".png" && ext != ".pdf" {
		return fmt.Errorf("output file '%s' must have a .png or .pdf extension", outputFile)
	}

	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	start := time.Now()
	s, res, err := editImage(inputFile, cmds)
	if err != nil {
		return err
	}
	if len(cmds) > 0 {
		fmt.Printf("Applied %d taps (%d ignored), %d undos, %d resets\n", res.Applied, res.Ignored, res.Undone, res.Resets)
	}

	title := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	if err := exportSession(s, outputFile, title, cfg); err != nil {
		return err
	}

	fmt.Printf("Successfully exported '%s' to '%s' in %.2fs\n", inputFile, outputFile, time.Since(start).Seconds())
	return nil
}

type sheetJob struct {
	input  string
	output string
}

// processDirectory turns every image below inputDir into a PDF sheet
// under outputDir, skipping sheets newer than their source.
func processDirectory(inputDir, outputDir string, cmds []Command, cfg *Config) error {
	if info, err := os.Stat(outputDir); err == nil && !info.IsDir() {
		return fmt.Errorf("input is a directory, but output '%s' is a file; specify an output directory", outputDir)
	}

	fmt.Printf("Scanning for images in '%s'...\n", inputDir)

	var jobs []sheetJob
	var numSkipped int

	err := filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isImageFile(path) {
			return nil
		}
		rel, _ := filepath.Rel(inputDir, path)
		out := filepath.Join(outputDir, strings.TrimSuffix(rel, filepath.Ext(rel))+".pdf")
		if len(cmds) == 0 && isUpToDate(path, out) {
			numSkipped++
		} else {
			jobs = append(jobs, sheetJob{input: path, output: out})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(jobs) == 0 && numSkipped == 0 {
		fmt.Println("No images found. Exiting.")
		return nil
	}

	if len(jobs) == 0 {
		fmt.Printf("All %d sheets are already up-to-date. Nothing to do.\n", numSkipped)
		return nil
	}

	fmt.Printf("Found %d images to export (%d up-to-date, skipped).\n", len(jobs), numSkipped)
	start := time.Now()

	var (
		completed atomic.Int64
		failed    atomic.Int64
		wg        sync.WaitGroup
	)
	total := int64(len(jobs))
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	errCh := make(chan string, len(jobs))

	for _, j := range jobs {
		j := j
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; wg.Done() }()
			if dir := filepath.Dir(j.output); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errCh <- fmt.Sprintf("failed to create directory '%s': %v", dir, err)
					failed.Add(1)
					return
				}
			}
			s, _, err := editImage(j.input, cmds)
			if err == nil {
				title := strings.TrimSuffix(filepath.Base(j.input), filepath.Ext(j.input))
				err = exportSession(s, j.output, title, cfg)
			}
			if err != nil {
				errCh <- fmt.Sprintf("failed to export '%s': %v", j.input, err)
				failed.Add(1)
			}
			n := completed.Add(1)
			fmt.Printf("\r[%d/%d] Exported %s", n, total, filepath.Base(j.input))
		}()
	}
	wg.Wait()
	close(errCh)

	fmt.Println()
	for msg := range errCh {
		fmt.Fprintln(os.Stderr, msg)
	}

	fmt.Printf("Exported %d sheets in %.2fs\n", int64(len(jobs))-failed.Load(), time.Since(start).Seconds())
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d exports failed", n, len(jobs))
	}
	return nil
}

func isUpToDate(input, output string) bool {
	outInfo, err := os.Stat(output)
	if err != nil {
		return false
	}
	inInfo, err := os.Stat(input)
	if err != nil {
		return false
	}
	return !outInfo.ModTime().Before(inInfo.ModTime())
}
