package service

import (
	"fmt"
	"strings"

	"github.com/and161185/warranty-keeper/internal/model"
)

// Required photo categories per record kind.
var (
	WarrantyPhotoCategories   = []model.PhotoCategory{model.PhotoGenerator, model.PhotoCouplers, model.PhotoBody}
	InspectionPhotoCategories = []model.PhotoCategory{model.PhotoGeneratorRedLight, model.PhotoCouplers, model.PhotoCorrosionOrClearBody}
)

// EvidenceGate decides whether a record carries enough evidence to be submitted.
// Checks never stop at the first failure; every unmet requirement is reported.
type EvidenceGate struct {
	minPhotos      int
	minPerCategory int
}

// NewEvidenceGate constructs a gate; non-positive values fall back to 3 photos and 1 per category.
func NewEvidenceGate(minPhotos, minPerCategory int) EvidenceGate {
	if minPhotos <= 0 {
		minPhotos = 3
	}
	if minPerCategory <= 0 {
		minPerCategory = 1
	}
	return EvidenceGate{minPhotos: minPhotos, minPerCategory: minPerCategory}
}

func (g EvidenceGate) photos(photos []model.Photo, required []model.PhotoCategory) []string {
	var out []string
	if len(photos) < g.minPhotos {
		out = append(out, fmt.Sprintf("at least %d photos are required, got %d", g.minPhotos, len(photos)))
	}
	counts := model.CountByCategory(photos)
	for _, c := range required {
		if counts[c] < g.minPerCategory {
			out = append(out, fmt.Sprintf("at least %d %s photo(s) required, got %d", g.minPerCategory, c, counts[c]))
		}
	}
	return out
}

// CheckWarranty returns every unmet submit requirement of w.
func (g EvidenceGate) CheckWarranty(w *model.Warranty) []string {
	out := g.photos(w.Photos, WarrantyPhotoCategories)
	if strings.TrimSpace(w.Vehicle.VIN) == "" {
		out = append(out, "vehicle VIN is required")
	}
	if strings.TrimSpace(w.SerialNumber) == "" {
		out = append(out, "device serial number is required")
	}
	if w.DateInstalled == nil || w.DateInstalled.IsZero() {
		out = append(out, "install date is required")
	}
	out = append(out, corrosionProblems(w.CorrosionFound, w.CorrosionDetails, true)...)
	return out
}

// CheckInspection returns every unmet submit requirement of in.
func (g EvidenceGate) CheckInspection(in *model.Inspection) []string {
	out := g.photos(in.Photos, InspectionPhotoCategories)
	out = append(out, areaProblems(in.Areas)...)
	c := in.Checklist
	for _, q := range []struct {
		name string
		v    *bool
	}{
		{"generator mounted", c.GeneratorMounted},
		{"red light illuminated", c.RedLightIlluminated},
		{"couplers secure", c.CouplersSecure},
		{"owner advised", c.OwnerAdvised},
	} {
		if q.v == nil {
			out = append(out, fmt.Sprintf("checklist answer %q is required", q.name))
		}
	}
	out = append(out, corrosionProblems(in.CorrosionFound, in.CorrosionDetails, true)...)
	return out
}

// corrosionProblems checks the corrosion declaration; required makes a missing declaration a problem.
func corrosionProblems(found *bool, details string, required bool) []string {
	if found == nil {
		if required {
			return []string{"corrosion declaration is required"}
		}
		return nil
	}
	if *found && strings.TrimSpace(details) == "" {
		return []string{"corrosion details are required when corrosion is found"}
	}
	return nil
}

func areaProblems(areas []model.AreaCondition) []string {
	var out []string
	seen := make(map[model.Area]bool, len(areas))
	for _, a := range areas {
		switch {
		case !a.Area.Valid():
			out = append(out, fmt.Sprintf("unknown area %q", a.Area))
			continue
		case seen[a.Area]:
			out = append(out, fmt.Sprintf("area %s listed more than once", a.Area))
		}
		seen[a.Area] = true
		if !a.Condition.Valid() {
			out = append(out, fmt.Sprintf("area %s has unknown condition %q", a.Area, a.Condition))
		}
		if a.Condition == model.ConditionIssue && strings.TrimSpace(a.Notes) == "" {
			out = append(out, fmt.Sprintf("area %s is marked ISSUE and needs notes", a.Area))
		}
	}
	return out
}

func photoProblems(photos []model.Photo, allowed []model.PhotoCategory) []string {
	var out []string
	for i, p := range photos {
		ok := false
		for _, c := range allowed {
			if p.Category == c {
				ok = true
				break
			}
		}
		if !ok {
			out = append(out, fmt.Sprintf("photo %d has unsupported category %q", i, p.Category))
		}
		if strings.TrimSpace(p.URL) == "" {
			out = append(out, fmt.Sprintf("photo %d has no url", i))
		}
	}
	return out
}
