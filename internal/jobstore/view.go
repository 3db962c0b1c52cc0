package jobstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// StageImage is one stored image inlined for the consolidated view.
type StageImage struct {
	FileName   string `json:"fileName"`
	InlineData string `json:"inlineData"`
}

// View is the consolidated read-side representation of a job: work-order
// metadata (or the order-level fallback) plus every stage's images inlined
// as base64 data URIs.
type View struct {
	WorkOrderFound         bool         `json:"workOrderFound"`
	Data                   Document     `json:"data"`
	CemeteryImages         []StageImage `json:"cemeteryImages"`
	FinalArtImages         []StageImage `json:"finalArtImages"`
	CemeteryApprovalImages []StageImage `json:"cemeteryApprovalImages"`
	EngravingImages        []StageImage `json:"engravingImages"`
	FoundationImages       []StageImage `json:"foundationImages"`
	MonumentImages         []StageImage `json:"monumentImages"`
}

// viewStages fixes which stage scans feed which view field.
var viewStages = []struct {
	stage  Stage
	assign func(*View, []StageImage)
}{
	{StageCemeterySubmission, func(v *View, imgs []StageImage) { v.CemeteryImages = imgs }},
	{StageFinalArt, func(v *View, imgs []StageImage) { v.FinalArtImages = imgs }},
	{StageCemeteryApproval, func(v *View, imgs []StageImage) { v.CemeteryApprovalImages = imgs }},
	{StageEngravingSubmission, func(v *View, imgs []StageImage) { v.EngravingImages = imgs }},
	{StageFoundationInstall, func(v *View, imgs []StageImage) { v.FoundationImages = imgs }},
	{StageMonumentSetting, func(v *View, imgs []StageImage) { v.MonumentImages = imgs }},
}

// WorkOrderView assembles the consolidated view for one job directory. The
// six stage scans run concurrently and are joined before returning: there is
// no partial delivery, the first scan error fails the whole view. Missing
// stage directories contribute an empty list.
func (s *Store) WorkOrderView(ctx context.Context, dirName string) (*View, error) {
	jobDir := s.JobDir(dirName)
	meta, found, err := s.readWorkOrderOrFallback(jobDir)
	if err != nil {
		return nil, err
	}
	view := &View{WorkOrderFound: found, Data: meta}

	results := make([][]StageImage, len(viewStages))
	errs := make([]error, len(viewStages))
	var wg sync.WaitGroup
	for i, vs := range viewStages {
		wg.Add(1)
		go func(i int, stage Stage) {
			defer wg.Done()
			results[i], errs[i] = scanStageImages(ctx, filepath.Join(jobDir, stage.RelPath()))
		}(i, vs.stage)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", viewStages[i].stage, err)
		}
	}
	for i, vs := range viewStages {
		vs.assign(view, results[i])
	}
	return view, nil
}

// scanStageImages lists a stage directory and inlines every file as a data
// URI. Directory-listing order is preserved as-is; nothing downstream sorts
// by filename.
func scanStageImages(ctx context.Context, dir string) ([]StageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []StageImage{}, nil
		}
		return nil, err
	}
	images := make([]StageImage, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		ext := strings.TrimPrefix(filepath.Ext(entry.Name()), ".")
		images = append(images, StageImage{
			FileName:   entry.Name(),
			InlineData: "data:" + mimeForExt(ext) + ";base64," + base64.StdEncoding.EncodeToString(data),
		})
	}
	return images, nil
}
