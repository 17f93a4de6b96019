package model

// EventResult carries notes as ints so they encode as a JSON array.
type EventResult struct {
	Chord    string  `json:"chord"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Notes    []int   `json:"notes"`
}

type ChordsResponse struct {
	Frames int           `json:"frames"`
	Hop    float64       `json:"hop"`
	Events []EventResult `json:"events"`
}

type ErrorResponse struct {
	Error string `json:"detail"`
}
