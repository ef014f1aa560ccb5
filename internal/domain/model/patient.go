package model

// Patient is one entry of the monitored roster.
type Patient struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Ward string `json:"ward,omitempty"`
	Bed  string `json:"bed,omitempty"`
}
