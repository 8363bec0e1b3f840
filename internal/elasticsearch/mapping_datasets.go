package elasticsearch

// DatasetsMapping returns the index body for datasets.
// Keyword: id, name, state, organization, tags, groups, license_id, type.
// Text: title, notes, text (title also has a keyword subfield for sorting).
// Dates: metadata_created, metadata_modified.
func DatasetsMapping() map[string]any {
	keyword := map[string]any{"type": "keyword"}
	text := map[string]any{"type": "text"}
	date := map[string]any{"type": "date"}
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":           keyword,
				"name":         keyword,
				"state":        keyword,
				"type":         keyword,
				"organization": keyword,
				"license_id":   keyword,
				"tags":         keyword,
				"groups":       keyword,
				"title": map[string]any{
					"type": "text",
					"fields": map[string]any{
						"keyword": map[string]any{"type": "keyword", "ignore_above": 512},
					},
				},
				"notes":             text,
				"text":              text,
				"metadata_created":  date,
				"metadata_modified": date,
			},
		},
	}
}
