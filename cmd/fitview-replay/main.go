// fitview-replay feeds recorded landmark frames (one JSON frame per line)
// through a rep counter and prints the feature, phase and count per frame.
//
// Usage:
//
//	fitview-replay -exercise squats recording.jsonl
//	cat recording.jsonl | fitview-replay -exercise pushups
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/teslashibe/fitview/internal/log"
	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/feature"
	"github.com/teslashibe/fitview/pkg/pose"
	"github.com/teslashibe/fitview/pkg/repcount"
	"github.com/teslashibe/fitview/pkg/session"
)

func main() {
	kindName := flag.String("exercise", "situps", "Exercise to count: situps, squats, pushups")
	quiet := flag.Bool("quiet", false, "Only print the final count")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := "warn"
	if *debug {
		level = "debug"
	}
	log.Init(level, "text")

	kind, err := exercise.ParseKind(*kindName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	in := io.Reader(os.Stdin)
	if path := flag.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	out := io.Writer(os.Stdout)
	if *quiet {
		out = io.Discard
	}

	res, err := replay(in, out, kind, repcount.DefaultConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d reps (%d frames, %d skipped)\n", kind, res.Count, res.Frames, res.Skipped)
}

type result struct {
	Count   int
	Frames  int
	Skipped int
}

// replay processes every frame in r in order. Frames that fail to decode or
// lack the exercise's joints are skipped and reported on w.
func replay(r io.Reader, w io.Writer, kind exercise.Kind, cfg repcount.Config) (result, error) {
	ctrl, err := session.NewController(kind, cfg, session.WithLogger(log.L()))
	if err != nil {
		return result{}, err
	}

	var res result
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		res.Frames++

		var f pose.Frame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			res.Skipped++
			fmt.Fprintf(w, "line %d: skipped: %v\n", line, err)
			continue
		}

		s, err := ctrl.ProcessFrame(f)
		if err != nil {
			if errors.Is(err, pose.ErrMissingLandmark) || errors.Is(err, feature.ErrDegenerateGeometry) {
				res.Skipped++
				fmt.Fprintf(w, "frame %d: skipped: %v\n", f.Seq(), err)
				continue
			}
			return res, fmt.Errorf("frame %d: %w", f.Seq(), err)
		}
		fmt.Fprintf(w, "frame %d: %s=%.3f phase=%t count=%d\n",
			f.Seq(), s.Unit, s.Feature, s.Phase, s.Count)
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("reading frames: %w", err)
	}

	res.Count = ctrl.Snapshot().Count
	return res, nil
}
