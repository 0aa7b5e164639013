package client

import "reviewdeck/internal/types"

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version"`
}

type JobsResponse struct {
	Jobs []types.JobRecord `json:"jobs"`
}

type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}
