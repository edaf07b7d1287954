package models

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DeviceStat is the inside/total tally for one device against a reference area.
type DeviceStat struct {
	Device  string  `json:"device"`
	Inside  int     `json:"inside"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// CleanedEvent announces that a protocol's clean directory has been rewritten.
type CleanedEvent struct {
	RunID      string   `json:"run_id"`
	Protocol   Protocol `json:"protocol"`
	CleanDir   string   `json:"clean_dir"`
	Files      []string `json:"files"`
	Points     int      `json:"points"`
	FinishedAt string   `json:"finished_at"`
}
