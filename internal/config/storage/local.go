package storage

type LocalStorage struct {
	// Directory is the dump root; dumps land under
	// <directory>/<index>/<timestamp>.
	Directory string `hcl:"directory"`

	RetentionPeriod *string `hcl:"retention_period"`
	RetentionCount  *int    `hcl:"retention_count"`
}

// GetEffectiveRetentionDays returns the configured retention period in
// days, or 0 when no period is configured.
func (l *LocalStorage) GetEffectiveRetentionDays() (int, error) {
	if l.RetentionPeriod == nil {
		return 0, nil
	}

	return ParseRetentionPeriod(*l.RetentionPeriod)
}

func (l *LocalStorage) IsRetentionConfigured() bool {
	return l.RetentionPeriod != nil || l.RetentionCount != nil
}
