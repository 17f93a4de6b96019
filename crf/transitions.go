package crf

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/jsphweid/chordmidi/errs"
	"github.com/pkg/errors"
)

const (
	labelsKey  = "labels"
	initialKey = "initial"
)

// Transitions holds log scores for moving between vocabulary states.
// Scores[i*N+j] is the score of going from state i to state j.
type Transitions struct {
	Labels  []string
	Initial []float64
	Scores  []float64
}

func (t *Transitions) N() int {
	return len(t.Labels)
}

func (t *Transitions) At(from, to int) float64 {
	return t.Scores[from*len(t.Labels)+to]
}

// Default rewards staying in a state: 0 for a self transition, -switchPenalty otherwise.
func Default(labels []string, switchPenalty float64) *Transitions {
	n := len(labels)
	t := &Transitions{
		Labels:  append([]string(nil), labels...),
		Initial: make([]float64, n),
		Scores:  make([]float64, n*n),
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				t.Scores[i*n+j] = -switchPenalty
			}
		}
	}
	return t
}

func (t *Transitions) Validate() error {
	n := len(t.Labels)
	if n == 0 {
		return errors.Wrap(errs.ErrModelLoad, "transitions define no labels")
	}
	if len(t.Initial) != n {
		return errors.Wrapf(errs.ErrModelLoad, "transitions have %d initial scores for %d labels", len(t.Initial), n)
	}
	if len(t.Scores) != n*n {
		return errors.Wrapf(errs.ErrModelLoad, "transitions have %d scores, expected %dx%d", len(t.Scores), n, n)
	}
	seen := make(map[string]bool, n)
	for _, l := range t.Labels {
		if seen[l] {
			return errors.Wrapf(errs.ErrModelLoad, "duplicate transition label %q", l)
		}
		seen[l] = true
	}
	for _, v := range append(append([]float64(nil), t.Initial...), t.Scores...) {
		if math.IsNaN(v) || math.IsInf(v, 1) {
			return errors.Wrap(errs.ErrModelLoad, "transitions contain NaN or +Inf")
		}
	}
	return nil
}

func parseFloats(fields []string, line int) ([]float64, error) {
	res := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Wrapf(errs.ErrModelLoad, "line %d: bad number %q", line, f)
		}
		res[i] = v
	}
	return res, nil
}

// Read parses the text format:
//
//	# comment
//	labels C:maj C#:maj ... N
//	initial 0 0 ... 0      (optional)
//	<N rows of N scores>
func Read(r io.Reader) (*Transitions, error) {
	var t Transitions
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		switch fields[0] {
		case labelsKey:
			if t.Labels != nil {
				return nil, errors.Wrapf(errs.ErrModelLoad, "line %d: labels given twice", line)
			}
			t.Labels = append([]string{}, fields[1:]...)
		case initialKey:
			if t.Labels == nil {
				return nil, errors.Wrapf(errs.ErrModelLoad, "line %d: initial scores before labels", line)
			}
			if t.Initial != nil {
				return nil, errors.Wrapf(errs.ErrModelLoad, "line %d: initial scores given twice", line)
			}
			row, err := parseFloats(fields[1:], line)
			if err != nil {
				return nil, err
			}
			if len(row) != len(t.Labels) {
				return nil, errors.Wrapf(errs.ErrModelLoad, "line %d: %d initial scores for %d labels", line, len(row), len(t.Labels))
			}
			t.Initial = row
		default:
			if t.Labels == nil {
				return nil, errors.Wrapf(errs.ErrModelLoad, "line %d: scores before labels", line)
			}
			row, err := parseFloats(fields, line)
			if err != nil {
				return nil, err
			}
			if len(row) != len(t.Labels) {
				return nil, errors.Wrapf(errs.ErrModelLoad, "line %d: row has %d scores, expected %d", line, len(row), len(t.Labels))
			}
			t.Scores = append(t.Scores, row...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(errs.ErrModelLoad, "could not read transitions (%v)", err)
	}
	if t.Labels != nil && t.Initial == nil {
		t.Initial = make([]float64, len(t.Labels))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func Load(path string) (*Transitions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrModelLoad, "could not open transitions (%v)", err)
	}
	defer f.Close()
	t, err := Read(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "transitions %s", path)
	}
	return t, nil
}

func formatRow(key string, row []float64) string {
	parts := make([]string, 0, len(row)+1)
	if key != "" {
		parts = append(parts, key)
	}
	for _, v := range row {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strings.Join(parts, " ")
}

func (t *Transitions) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# chord transitions, %d states, row = from, column = to\n", t.N())
	fmt.Fprintf(bw, "%s %s\n", labelsKey, strings.Join(t.Labels, " "))
	fmt.Fprintln(bw, formatRow(initialKey, t.Initial))
	n := t.N()
	for i := 0; i < n; i++ {
		fmt.Fprintln(bw, formatRow("", t.Scores[i*n:(i+1)*n]))
	}
	return bw.Flush()
}

func (t *Transitions) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create transitions")
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return errors.Wrap(err, "write transitions")
	}
	return f.Close()
}

func (t *Transitions) Fingerprint() uint64 {
	h := xxhash.New64()
	t.Write(h)
	return h.Sum64()
}
