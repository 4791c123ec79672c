package elastic

// DefaultMapping is the mapping rebuilt indexes are created with: the
// zdb_* system fields typed explicitly, everything else mapped
// dynamically by Elasticsearch.
func DefaultMapping() map[string]any {
	return map[string]any{
		"dynamic": true,
		"properties": map[string]any{
			"zdb_ctid":         map[string]any{"type": "long"},
			"zdb_cmin":         map[string]any{"type": "integer"},
			"zdb_cmax":         map[string]any{"type": "integer"},
			"zdb_xmin":         map[string]any{"type": "long"},
			"zdb_xmax":         map[string]any{"type": "long"},
			"zdb_aborted_xids": map[string]any{"type": "long"},
		},
	}
}
