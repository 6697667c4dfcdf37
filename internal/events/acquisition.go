package events

// Entity types
const (
	EntityContent = "content"
	EntityMovie   = "movie"
	EntityJob     = "job"
)

// Event type constants
const (
	EventAcquisitionRequested = "acquisition.requested"
	EventAcquisitionFailed    = "acquisition.failed"
	EventAcquisitionReady     = "acquisition.ready"
	EventAcquisitionCancelled = "acquisition.cancelled"
	EventDownloadCheck        = "download.check"
	EventDownloadCompleted    = "download.completed"
	EventProcessRequested     = "process.requested"
	EventSubtitlesRequested   = "subtitles.requested"
	EventMetadataRequested    = "metadata.requested"
)

// AcquisitionRequested is emitted when a user/CLI requests a download.
type AcquisitionRequested struct {
	BaseEvent
	ContentID int64  `json:"content_id"`
	Source    string `json:"source"`
}

// DownloadCheck is emitted on each poll of the torrent daemon.
// Attempt counts from 1; handlers give up past the configured ceiling.
type DownloadCheck struct {
	BaseEvent
	ContentID int64 `json:"content_id"`
	JobID     int64 `json:"job_id"`
	Attempt   int   `json:"attempt"`
}

// DownloadCompleted is emitted when the daemon reports all bytes on disk.
type DownloadCompleted struct {
	BaseEvent
	ContentID  int64  `json:"content_id"`
	JobID      int64  `json:"job_id"`
	SourcePath string `json:"source_path"`
}

// ProcessRequested is emitted once downloaded files are relocated and
// ready for transcoding.
type ProcessRequested struct {
	BaseEvent
	ContentID int64  `json:"content_id"`
	Folder    string `json:"folder"`
}

// SubtitlesRequested is emitted after transcoding to trigger subtitle
// acquisition.
type SubtitlesRequested struct {
	BaseEvent
	ContentID int64 `json:"content_id"`
}

// MetadataRequested is emitted to resolve movie metadata for a content item.
type MetadataRequested struct {
	BaseEvent
	ContentID int64  `json:"content_id"`
	Name      string `json:"name"`
	IMDBID    string `json:"imdb_id,omitempty"`
}

// AcquisitionFailed is emitted when any pipeline stage gives up.
type AcquisitionFailed struct {
	BaseEvent
	ContentID int64  `json:"content_id"`
	Stage     string `json:"stage"`
	Reason    string `json:"reason"`
}

// AcquisitionReady is emitted when the pipeline finishes end to end.
type AcquisitionReady struct {
	BaseEvent
	ContentID int64 `json:"content_id"`
}

// AcquisitionCancelled is emitted when a user cancels an acquisition.
type AcquisitionCancelled struct {
	BaseEvent
	ContentID int64 `json:"content_id"`
}
