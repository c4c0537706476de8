package catalog

import (
	"staticcurator/models"
	"staticcurator/utils"
)

// Assemble maps discovered movies onto catalog entries in discovery order.
// Movies without a resolved IMDb id are dropped. A movie without a poster
// path gets no poster field.
func Assemble(raw []models.RawItem, ids map[int64]string, imageBase string) []models.MetaPreview {
	metas := make([]models.MetaPreview, 0, len(ids))
	for _, item := range raw {
		id, ok := ids[item.UpstreamID]
		if !ok || id == "" {
			continue
		}
		metas = append(metas, models.MetaPreview{
			ID:          id,
			Type:        models.ContentTypeMovie,
			Name:        item.Title,
			Poster:      posterURL(imageBase, item.PosterPath),
			Description: item.Overview,
		})
	}
	return metas
}

func posterURL(base string, path *string) string {
	if path == nil {
		return ""
	}
	return utils.JoinImageURL(base, *path)
}
