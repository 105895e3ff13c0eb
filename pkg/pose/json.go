package pose

import (
	"encoding/json"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// wireLandmark is the JSON form of a landmark.
type wireLandmark struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

// wireFrame is the JSON form of a frame, used by recordings and the
// remote landmark stream.
type wireFrame struct {
	Seq       uint64         `json:"seq"`
	Time      time.Time      `json:"time,omitempty"`
	Landmarks []wireLandmark `json:"landmarks"`
}

// MarshalJSON encodes the frame with landmarks sorted by name.
func (f Frame) MarshalJSON() ([]byte, error) {
	w := wireFrame{Seq: f.seq, Time: f.time}
	for _, l := range f.Landmarks() {
		w.Landmarks = append(w.Landmarks, wireLandmark{
			Name: string(l.Joint),
			X:    l.Position.X,
			Y:    l.Position.Y,
			Z:    l.Position.Z,
		})
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a frame and applies the same validation as NewFrame.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	landmarks := make([]Landmark, len(w.Landmarks))
	for i, l := range w.Landmarks {
		landmarks[i] = Landmark{Joint: Joint(l.Name), Position: r3.Vec{X: l.X, Y: l.Y, Z: l.Z}}
	}
	frame, err := NewFrame(w.Seq, w.Time, landmarks)
	if err != nil {
		return err
	}
	*f = frame
	return nil
}
