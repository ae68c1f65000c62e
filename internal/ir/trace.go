package ir

// StreamWrite records one output written by a native activation through
// setOutputs while the runtime processed (or prepared) an instant.
type StreamWrite struct {
	Instant     int64   `json:"instant"`
	Seq         int64   `json:"seq"`         // Position of the write within the run
	Activation  int64   `json:"activation"`  // Containing user activation ID
	Application string  `json:"application"` // Native application label
	Port        string  `json:"port"`
	Value       IRValue `json:"value"`
}

// Object returns the write as an IRObject for canonical encoding.
func (w StreamWrite) Object() IRObject {
	v := w.Value
	if v == nil {
		v = IRNull{}
	}
	return IRObject{
		"instant":     IRInt(w.Instant),
		"seq":         IRInt(w.Seq),
		"activation":  IRInt(w.Activation),
		"application": IRString(w.Application),
		"port":        IRString(w.Port),
		"value":       v,
	}
}

// InstantRecord summarizes one completed pump.
type InstantRecord struct {
	Instant int64 `json:"instant"`
	Tasks   int   `json:"tasks"` // Native updates performed (after duplicate collapse)
}

// RunRecord describes one stored run of a program.
type RunRecord struct {
	ID          string `json:"id"`
	Program     string `json:"program"`
	ProgramHash string `json:"program_hash"`
	Seq         int64  `json:"seq"` // Store-assigned ordering
}
