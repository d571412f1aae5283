package scoring

// Summary is a scored résumé together with the admission outcome, as
// printed by the score command.
type Summary struct {
	Resume    string  `json:"resume"`
	JobID     string  `json:"jobId"`
	JobTitle  string  `json:"jobTitle"`
	Threshold float64 `json:"threshold"`
	Admitted  bool    `json:"admitted"`
	Result    Result  `json:"result"`
}
