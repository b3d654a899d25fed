package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlagEntry marks a source address whose in-window request count exceeded
// the threshold. IP and Comment are what gets persisted.
type FlagEntry struct {
	IP        string    `json:"ip"`
	Comment   string    `json:"comment"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Window    string    `json:"window,omitempty"`
	FlaggedAt time.Time `json:"flagged_at"`
}

func NewFlagEntry(ip string, count, threshold int) *FlagEntry {
	return &FlagEntry{
		IP:        ip,
		Comment:   ThresholdComment(threshold),
		Count:     count,
		Threshold: threshold,
		FlaggedAt: time.Now().UTC(),
	}
}

// ThresholdComment is the reason text stored alongside a flagged address.
func ThresholdComment(threshold int) string {
	return fmt.Sprintf("Threshold limit %d reached", threshold)
}

func (f *FlagEntry) ToJSON() ([]byte, error) {
	return json.Marshal(f)
}
