package model

// Metadata describes an exported model. It is read from <name>.json next to
// <name>.onnx in the models directory.
type Metadata struct {
	InputShape  []int64   `json:"input_shape"`
	OutputShape []int64   `json:"output_shape"`
	InputName   string    `json:"input_name"`
	OutputName  string    `json:"output_name"`
	ImageSize   int       `json:"image_size"`
	Mean        []float32 `json:"mean"`
	Std         []float32 `json:"std"`
	Classes     []string  `json:"classes"`
	LabelsFile  string    `json:"labels_file"`
}

// ClassificationRequest is the body of POST /kq.
type ClassificationRequest struct {
	Image string `json:"image"`
	Model string `json:"model"`
}

// ClassificationResult is the body returned by POST /kq. Score is a
// percentage in 0..100.
type ClassificationResult struct {
	Disease string  `json:"disease"`
	Score   float32 `json:"score"`
	Detail  *Detail `json:"detail,omitempty"`
}

// Detail carries the optional per-category sub-scores.
type Detail struct {
	HacTo     *float32 `json:"hac_to,omitempty"`
	Vay       *float32 `json:"vay,omitempty"`
	Day       *float32 `json:"day,omitempty"`
	KhongBenh *float32 `json:"khong_benh,omitempty"`
	UngThu    *float32 `json:"ung_thu,omitempty"`
	BenhKhac  *float32 `json:"benh_khac,omitempty"`
}

// DetailEntry is one named sub-score.
type DetailEntry struct {
	Name  string
	Score float32
}

// Entries returns the set sub-scores in their fixed display order.
func (d *Detail) Entries() []DetailEntry {
	if d == nil {
		return nil
	}
	fields := []struct {
		name string
		v    *float32
	}{
		{"Hac to", d.HacTo},
		{"Vay", d.Vay},
		{"Day", d.Day},
		{"Khong benh", d.KhongBenh},
		{"Ung thu", d.UngThu},
		{"Benh khac", d.BenhKhac},
	}
	var out []DetailEntry
	for _, f := range fields {
		if f.v != nil {
			out = append(out, DetailEntry{Name: f.name, Score: *f.v})
		}
	}
	return out
}

// set stores score under the field whose key matches label. It reports
// whether label named a detail field.
func (d *Detail) set(label string, score float32) bool {
	v := score
	switch normalizeKey(label) {
	case "hac_to":
		d.HacTo = &v
	case "vay":
		d.Vay = &v
	case "day":
		d.Day = &v
	case "khong_benh":
		d.KhongBenh = &v
	case "ung_thu":
		d.UngThu = &v
	case "benh_khac":
		d.BenhKhac = &v
	default:
		return false
	}
	return true
}
