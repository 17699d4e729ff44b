package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/sim"
)

var bodyColumns = []string{"x", "y", "vx", "vy"}

// WriteCSV writes one row per frame: time, total energy, then x, y, vx, vy for
// each body of the first frame.
func WriteCSV(w io.Writer, frames []dynamo.Frame) error {
	if len(frames) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	ids := bodyIDs(frames)
	header := []string{"time", "energy"}
	for _, id := range ids {
		for _, col := range bodyColumns {
			header = append(header, id+"."+col)
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, f := range frames {
		row := []string{formatFloat(f.Time), formatFloat(f.Metrics.TotalEnergy)}
		byID := make(map[string]*dynamo.Body, len(f.Bodies))
		for i := range f.Bodies {
			byID[f.Bodies[i].ID] = &f.Bodies[i]
		}

		for _, id := range ids {
			b, ok := byID[id]
			if !ok {
				row = append(row, "", "", "", "")
				continue
			}
			row = append(row,
				formatFloat(b.Position.X), formatFloat(b.Position.Y),
				formatFloat(b.Velocity.X), formatFloat(b.Velocity.Y))
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the layout written by WriteCSV. Rows with an unreadable time
// are skipped, as are bodies with empty cells.
func ReadCSV(r io.Reader) ([]dynamo.Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidRun, err)
	}
	if len(records) < 1 {
		return []dynamo.Frame{}, nil
	}

	ids, err := parseHeader(records[0])
	if err != nil {
		return nil, err
	}

	frames := make([]dynamo.Frame, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 2 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		energy, _ := strconv.ParseFloat(record[1], 64)

		frame := dynamo.Frame{
			Time:    t,
			Bodies:  make([]dynamo.Body, 0, len(ids)),
			Metrics: dynamo.Metrics{TotalEnergy: energy},
		}
		for i, id := range ids {
			vals, ok := parseCells(record, 2+i*len(bodyColumns))
			if !ok {
				continue
			}
			frame.Bodies = append(frame.Bodies, dynamo.Body{
				ID:       id,
				Position: dynamo.V(vals[0], vals[1]),
				Velocity: dynamo.V(vals[2], vals[3]),
			})
		}
		frame.Metrics.BodyCount = len(frame.Bodies)
		frames = append(frames, frame)
	}

	return frames, nil
}

func parseHeader(header []string) ([]string, error) {
	if len(header) < 2 || header[0] != "time" || header[1] != "energy" {
		return nil, fmt.Errorf("%w: unexpected csv header %v", dynamo.ErrInvalidRun, header)
	}
	cols := header[2:]
	if len(cols)%len(bodyColumns) != 0 {
		return nil, fmt.Errorf("%w: incomplete body columns in csv header", dynamo.ErrInvalidRun)
	}

	ids := make([]string, 0, len(cols)/len(bodyColumns))
	for i := 0; i < len(cols); i += len(bodyColumns) {
		cut := strings.LastIndexByte(cols[i], '.')
		if cut < 0 {
			return nil, fmt.Errorf("%w: bad column %q", dynamo.ErrInvalidRun, cols[i])
		}
		ids = append(ids, cols[i][:cut])
	}
	return ids, nil
}

func parseCells(record []string, start int) ([4]float64, bool) {
	var out [4]float64
	if start+len(out) > len(record) {
		return out, false
	}
	for j := range out {
		v, err := strconv.ParseFloat(record[start+j], 64)
		if err != nil {
			return out, false
		}
		out[j] = v
	}
	return out, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

type ExportData struct {
	Scene       string                `json:"scene"`
	Integrator  dynamo.IntegratorKind `json:"integrator"`
	Dt          float64               `json:"dt"`
	Duration    float64               `json:"duration"`
	Steps       int                   `json:"steps"`
	EnergyDrift float64               `json:"energy_drift"`
	Times       []float64             `json:"times"`
	Frames      []dynamo.Frame        `json:"frames"`
	Metrics     map[string]float64    `json:"metrics"`
}

// ExportJSON writes the full recorded trajectory as indented JSON.
func ExportJSON(w io.Writer, p RunParams, result *sim.Result) error {
	data := ExportData{
		Scene:       p.Scene,
		Integrator:  p.Integrator,
		Dt:          p.Dt,
		Duration:    p.Duration,
		Steps:       result.StepsTaken,
		EnergyDrift: result.EnergyDrift,
		Times:       result.Times,
		Frames:      result.Frames,
		Metrics:     result.Metrics,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
