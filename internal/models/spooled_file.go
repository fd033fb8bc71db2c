package models

import "time"

// SpooledFile represents one uploaded part written to the temporary spool.
type SpooledFile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"` // original filename from the client
	Path        string    `json:"-"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	SpooledAt   time.Time `json:"spooledAt"`
}

// TotalSize sums the sizes of the given files.
func TotalSize(files []*SpooledFile) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
