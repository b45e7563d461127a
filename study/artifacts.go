package study

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// Artifact describes one stored table: the CSV payload plus a checksum so a
// rerun can be compared byte for byte.
type Artifact struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	TrialID   string    `json:"trialId"`
	Kind      string    `json:"kind"` // truth, corrupted or imputed
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"` // sha256 of the CSV bytes
	CreatedAt time.Time `json:"createdAt"`
}

// ArtifactStore writes per-trial tables under baseDir/<run>/<trial>/.
type ArtifactStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewArtifactStore creates the store, making baseDir if needed.
func NewArtifactStore(baseDir string, logger *zap.Logger) (*ArtifactStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("study: artifact store needs a directory")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("study: failed to create artifact directory: %w", err)
	}
	return &ArtifactStore{baseDir: baseDir, logger: logger}, nil
}

// StoreTable writes the table as <kind>.csv with a <kind>.json metadata file
// next to it and returns the artifact record.
func (s *ArtifactStore) StoreTable(runID, trialID, kind string, t *dataset.Table) (*Artifact, error) {
	dir := filepath.Join(s.baseDir, runID, trialID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("study: failed to create artifact directory: %w", err)
	}

	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, t); err != nil {
		return nil, fmt.Errorf("study: failed to encode %s table: %w", kind, err)
	}
	data := buf.Bytes()

	csvPath := filepath.Join(dir, kind+".csv")
	if err := os.WriteFile(csvPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("study: failed to write artifact: %w", err)
	}

	sum := sha256.Sum256(data)
	artifact := &Artifact{
		ID:        fmt.Sprintf("%s/%s/%s", runID, trialID, kind),
		RunID:     runID,
		TrialID:   trialID,
		Kind:      kind,
		Path:      csvPath,
		Size:      int64(len(data)),
		Checksum:  hex.EncodeToString(sum[:]),
		CreatedAt: time.Now(),
	}

	meta, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("study: failed to marshal artifact metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, kind+".json"), meta, 0o644); err != nil {
		return nil, fmt.Errorf("study: failed to write artifact metadata: %w", err)
	}

	s.logger.Debug("Artifact stored",
		zap.String("artifactId", artifact.ID),
		zap.Int64("size", artifact.Size))
	return artifact, nil
}

// Retrieve loads an artifact and its table, verifying the checksum.
func (s *ArtifactStore) Retrieve(runID, trialID, kind string) (*Artifact, *dataset.Table, error) {
	dir := filepath.Join(s.baseDir, runID, trialID)

	meta, err := os.ReadFile(filepath.Join(dir, kind+".json"))
	if err != nil {
		return nil, nil, fmt.Errorf("study: artifact not found: %s/%s/%s", runID, trialID, kind)
	}
	var artifact Artifact
	if err := json.Unmarshal(meta, &artifact); err != nil {
		return nil, nil, fmt.Errorf("study: failed to unmarshal artifact metadata: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, kind+".csv"))
	if err != nil {
		return nil, nil, fmt.Errorf("study: failed to read artifact data: %w", err)
	}
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != artifact.Checksum {
		return nil, nil, fmt.Errorf("study: artifact %s checksum mismatch: stored %s, computed %s",
			artifact.ID, artifact.Checksum, got)
	}

	table, err := dataset.ReadCSV(bytes.NewReader(data), dataset.CSVOptions{Name: kind})
	if err != nil {
		return nil, nil, fmt.Errorf("study: failed to decode artifact table: %w", err)
	}
	return &artifact, table, nil
}

// List returns every artifact recorded for a run, sorted by id.
func (s *ArtifactStore) List(runID string) ([]*Artifact, error) {
	root := filepath.Join(s.baseDir, runID)
	var artifacts []*Artifact

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}
		meta, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var artifact Artifact
		if err := json.Unmarshal(meta, &artifact); err != nil {
			s.logger.Warn("Skipping unreadable artifact metadata",
				zap.String("path", path), zap.Error(err))
			return nil
		}
		artifacts = append(artifacts, &artifact)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("study: failed to list artifacts: %w", err)
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].ID < artifacts[j].ID })
	return artifacts, nil
}

// Delete removes every artifact of a run.
func (s *ArtifactStore) Delete(runID string) error {
	if runID == "" {
		return fmt.Errorf("study: refusing to delete artifacts without a run id")
	}
	if err := os.RemoveAll(filepath.Join(s.baseDir, runID)); err != nil {
		return fmt.Errorf("study: failed to delete artifacts: %w", err)
	}
	return nil
}
