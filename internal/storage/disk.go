package storage

import (
	"os"
)

// sqliteSidecars are the files SQLite keeps next to a WAL-mode database.
var sqliteSidecars = []string{"-wal", "-shm"}

// ArtifactUsage is the on-disk size of the persisted artifacts.
type ArtifactUsage struct {
	Index   int64 `json:"index"`
	State   int64 `json:"state"`
	History int64 `json:"history"`
}

// Total is the sum of all artifacts.
func (u ArtifactUsage) Total() int64 {
	return u.Index + u.State + u.History
}

// MeasureArtifacts stats the index blob, the upload-state file and the history
// database including its WAL sidecars. Artifacts that do not exist yet count as 0.
func MeasureArtifacts(indexPath, statePath, historyPath string) (ArtifactUsage, error) {
	var u ArtifactUsage
	var err error
	if u.Index, err = fileSize(indexPath); err != nil {
		return ArtifactUsage{}, err
	}
	if u.State, err = fileSize(statePath); err != nil {
		return ArtifactUsage{}, err
	}
	if u.History, err = fileSize(historyPath); err != nil {
		return ArtifactUsage{}, err
	}
	if historyPath != "" {
		for _, suffix := range sqliteSidecars {
			n, err := fileSize(historyPath + suffix)
			if err != nil {
				return ArtifactUsage{}, err
			}
			u.History += n
		}
	}
	return u, nil
}

func fileSize(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
