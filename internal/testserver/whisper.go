package testserver

import (
	"fmt"
	"io"
	"math"
	"time"

	whisper "github.com/go-graphite/go-whisper"
)

// FetchValue returns the value stored for ts in a whisper file.
func FetchValue(filename string, ts time.Time) (float64, error) {
	w, err := whisper.Open(filename)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	series, err := w.Fetch(int(ts.Unix())-1, int(ts.Unix()))
	if err != nil {
		return 0, err
	}
	for _, p := range series.Points() {
		if p.Time == int(ts.Unix()) && !math.IsNaN(p.Value) {
			return p.Value, nil
		}
	}
	return 0, fmt.Errorf("no value at %d in %s", ts.Unix(), filename)
}

// DumpWhisper writes the non-empty points of a whisper file between
// from and until to w.
func DumpWhisper(w io.Writer, filename string, from, until time.Time) error {
	fmt.Fprintf(w, "filename=%s\n", filename)
	f, err := whisper.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(w, "aggregation=%s, xFilesFactor=%g, retentions=%d\n",
		f.AggregationMethod(), f.XFilesFactor(), len(f.Retentions()))
	series, err := f.Fetch(int(from.Unix()), int(until.Unix()))
	if err != nil {
		return err
	}
	for _, p := range series.Points() {
		if math.IsNaN(p.Value) {
			continue
		}
		fmt.Fprintf(w, "time=%d(%s), value=%v\n", p.Time,
			time.Unix(int64(p.Time), 0).Format("2006-01-02 15:04:05"), p.Value)
	}
	return nil
}
