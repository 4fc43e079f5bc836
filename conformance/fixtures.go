package conformance

import (
	"encoding/json"
	"fmt"
	"os"

	"mpcten/tensor"
)

// TensorData is a serializable tensor
type TensorData struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// CaseData is a serializable conformance case. Protocols lists the
// protocols the fixture runs under; Expected may be omitted to compare
// against the closed-form reference.
type CaseData struct {
	Name      string      `json:"name"`
	Fixture   TensorData  `json:"fixture"`
	Axes      []int       `json:"axes,omitempty"`
	ReduceAll bool        `json:"reduce_all"`
	Expected  *TensorData `json:"expected,omitempty"`
	Protocols []string    `json:"protocols"`
}

// CaseFile is a whole case table on disk
type CaseFile struct {
	Version string     `json:"version"`
	Cases   []CaseData `json:"cases"`
}

// SaveCases saves a case table to a JSON file
func SaveCases(filepath string, file *CaseFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cases: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadCases loads a case table from a JSON file
func LoadCases(filepath string) (*CaseFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}
	var file CaseFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cases: %w", err)
	}
	return &file, nil
}

// TensorToData converts a tensor to its serializable form
func TensorToData(t *tensor.Tensor) TensorData {
	return TensorData{
		Shape: append([]int{}, t.Shape...),
		Data:  append([]float64{}, t.Data...),
	}
}

// DataToTensor converts serialized data back to a tensor
func DataToTensor(d TensorData) (*tensor.Tensor, error) {
	t := tensor.New(d.Shape...)
	if len(d.Data) != t.Size() {
		return nil, fmt.Errorf("data length %d does not match shape %v", len(d.Data), d.Shape)
	}
	copy(t.Data, d.Data)
	return t, nil
}

func (d CaseData) axisSpec() tensor.AxisSpec {
	if d.ReduceAll || len(d.Axes) == 0 {
		return tensor.ReduceAll()
	}
	return tensor.Axes(d.Axes...)
}

// Expand crosses the file's case data with their protocol lists,
// producing runnable cases in file order.
func (f *CaseFile) Expand() ([]Case, error) {
	var out []Case
	for _, cd := range f.Cases {
		fixture, err := DataToTensor(cd.Fixture)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", cd.Name, err)
		}
		var expected *tensor.Tensor
		if cd.Expected != nil {
			expected, err = DataToTensor(*cd.Expected)
			if err != nil {
				return nil, fmt.Errorf("case %s: %w", cd.Name, err)
			}
		}
		protocols := cd.Protocols
		if len(protocols) == 0 {
			protocols = SharingProtocols
		}
		spec := cd.axisSpec()
		for _, p := range protocols {
			out = append(out, Case{
				Name:     fmt.Sprintf("%s/axis=%s/%s", cd.Name, spec, p),
				Fixture:  fixture,
				Axis:     spec,
				Expected: expected,
				Protocol: p,
			})
		}
	}
	return out, nil
}

// TableFile converts the built-in table to its serializable form, so it
// can be dumped once and edited as a starting point for custom runs.
func TableFile() *CaseFile {
	file := &CaseFile{Version: "1"}
	for _, r := range rows() {
		cd := CaseData{
			Name:      r.name,
			Fixture:   TensorToData(r.fixture),
			ReduceAll: r.axis.All(),
			Protocols: append([]string{}, SharingProtocols...),
		}
		if !r.axis.All() {
			cd.Axes = r.axis.List()
		}
		if r.expected != nil {
			ed := TensorToData(r.expected)
			cd.Expected = &ed
		}
		file.Cases = append(file.Cases, cd)
	}
	return file
}
