package sessions

import (
	"time"

	"github.com/flowdeck/core/pkg/session"
)

// ArchiveRecord is the data stored on disk for one completed session run.
type ArchiveRecord struct {
	SessionID        string            `json:"session_id"`
	SessionPath      string            `json:"session_path"`
	NetworkName      string            `json:"network_name,omitempty"`
	FinalState       session.State     `json:"final_state"`
	CompletionReason string            `json:"completion_reason,omitempty"`
	CanAnalyze       bool              `json:"can_analyze"`
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	SavedAt          *time.Time        `json:"saved_at,omitempty"`
	ElapsedRealTime  time.Duration     `json:"elapsed_real_time"`
	Telemetry        session.Telemetry `json:"telemetry"`
}

// RecordFromSnapshot maps a session snapshot onto its archive form.
func RecordFromSnapshot(snap session.Snapshot) ArchiveRecord {
	return ArchiveRecord{
		SessionID:        snap.SessionID,
		SessionPath:      snap.SessionPath,
		NetworkName:      snap.NetworkName,
		FinalState:       snap.State,
		CompletionReason: snap.CompletionReason,
		CanAnalyze:       snap.CanAnalyze,
		CreatedAt:        snap.CreatedAt,
		CompletedAt:      snap.CompletedAt,
		SavedAt:          snap.SavedAt,
		ElapsedRealTime:  snap.ElapsedRealTime,
		Telemetry:        snap.Telemetry,
	}
}
