package jobstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Stage names one production phase with its own artifact directory inside a
// job. The relative paths are the persisted layout; renaming any of them
// orphans existing data.
type Stage int

const (
	StageWorkOrder Stage = iota
	StageCemeterySubmission
	StageFinalArt
	StageCemeteryApproval
	StageEngravingSubmission
	StageFoundationInstall
	StageMonumentSetting
)

// AllStages lists every stage; SaveWorkOrder uses it to pre-create the full
// tree.
var AllStages = []Stage{
	StageWorkOrder,
	StageCemeterySubmission,
	StageFinalArt,
	StageCemeteryApproval,
	StageEngravingSubmission,
	StageFoundationInstall,
	StageMonumentSetting,
}

var stageRelPaths = map[Stage]string{
	StageWorkOrder:           "Work_Order",
	StageCemeterySubmission:  filepath.Join("Work_Order", "Cemetery_Submission"),
	StageFinalArt:            filepath.Join("Work_Order", "Art_Submission", "Final_Art"),
	StageCemeteryApproval:    filepath.Join("Work_Order", "Art_Submission", "Cemetery_Approval"),
	StageEngravingSubmission: filepath.Join("Work_Order", "Engraving_Submission"),
	StageFoundationInstall:   filepath.Join("Work_Order", "Foundation_Install"),
	StageMonumentSetting:     filepath.Join("Work_Order", "Monument_Setting"),
}

var stageLabels = map[Stage]string{
	StageWorkOrder:           "work order",
	StageCemeterySubmission:  "cemetery submission",
	StageFinalArt:            "final art",
	StageCemeteryApproval:    "cemetery approval",
	StageEngravingSubmission: "engraving submission",
	StageFoundationInstall:   "foundation install",
	StageMonumentSetting:     "monument setting",
}

// RelPath reports the stage directory path relative to the job directory.
func (st Stage) RelPath() string {
	return stageRelPaths[st]
}

func (st Stage) String() string {
	return stageLabels[st]
}

// ensureJobRoot creates the job directory itself (non-recursive; the uploads
// root already exists from Open). Creation is check-free: MkdirAll-style
// tolerance of an existing directory, single-writer assumption otherwise.
func (s *Store) ensureJobRoot(dirName string) error {
	err := os.Mkdir(s.JobDir(dirName), 0o750)
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("create job directory %s: %w", dirName, err)
	}
	return nil
}

// ensureStageDir creates the full path down to one stage directory.
func (s *Store) ensureStageDir(dirName string, stage Stage) error {
	dir := filepath.Join(s.JobDir(dirName), stage.RelPath())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create stage directory %s: %w", stage, err)
	}
	return nil
}

// resetStageContents deletes every file directly inside the stage directory
// (subdirectories are left alone) so the caller can repopulate it. The prior
// submission's files are gone for good: latest submission wins.
func resetStageContents(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o750)
		}
		return fmt.Errorf("read stage directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("clear stage directory: %w", err)
		}
	}
	return nil
}
