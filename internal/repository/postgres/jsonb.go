package postgres

import (
	"encoding/json"
	"time"

	"github.com/and161185/warranty-keeper/internal/model"
)

type photoRow struct {
	Category   string    `json:"category"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type areaRow struct {
	Area      string `json:"area"`
	Condition string `json:"condition"`
	Notes     string `json:"notes,omitempty"`
}

func encodePhotos(ps []model.Photo) ([]byte, error) {
	rows := make([]photoRow, 0, len(ps))
	for _, p := range ps {
		rows = append(rows, photoRow{Category: string(p.Category), URL: p.URL, UploadedAt: p.UploadedAt})
	}
	return json.Marshal(rows)
}

func decodePhotos(b []byte) ([]model.Photo, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var rows []photoRow
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Photo, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Photo{Category: model.PhotoCategory(r.Category), URL: r.URL, UploadedAt: r.UploadedAt})
	}
	return out, nil
}

func encodeAreas(as []model.AreaCondition) ([]byte, error) {
	rows := make([]areaRow, 0, len(as))
	for _, a := range as {
		rows = append(rows, areaRow{Area: string(a.Area), Condition: string(a.Condition), Notes: a.Notes})
	}
	return json.Marshal(rows)
}

func decodeAreas(b []byte) ([]model.AreaCondition, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var rows []areaRow
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, err
	}
	out := make([]model.AreaCondition, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.AreaCondition{Area: model.Area(r.Area), Condition: model.Condition(r.Condition), Notes: r.Notes})
	}
	return out, nil
}

func tokenCols(ref *model.TokenRef) (*string, *time.Time) {
	if ref == nil {
		return nil, nil
	}
	d, exp := ref.Digest, ref.ExpiresAt
	return &d, &exp
}

func tokenRef(digest *string, exp *time.Time) *model.TokenRef {
	if digest == nil || exp == nil {
		return nil
	}
	return &model.TokenRef{Digest: *digest, ExpiresAt: *exp}
}
