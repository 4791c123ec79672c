package storage

type S3Storage struct {
	Endpoint  string `hcl:"endpoint"`
	AccessKey string `hcl:"access_key"`
	SecretKey string `hcl:"secret_key"`

	Bucket string  `hcl:"bucket"`
	Region *string `hcl:"region"`

	// Prefix is prepended to every object key; dumps land under
	// <prefix>/<index>/<timestamp>.
	Prefix *string `hcl:"prefix"`

	RetentionPeriod *string `hcl:"retention_period"`
	RetentionCount  *int    `hcl:"retention_count"`
}

func (s *S3Storage) GetRegion() string {
	if s.Region == nil {
		return ""
	}

	return *s.Region
}

func (s *S3Storage) GetPrefix() string {
	if s.Prefix == nil {
		return ""
	}

	return *s.Prefix
}

// GetEffectiveRetentionDays returns the configured retention period in
// days, or 0 when no period is configured.
func (s *S3Storage) GetEffectiveRetentionDays() (int, error) {
	if s.RetentionPeriod == nil {
		return 0, nil
	}

	return ParseRetentionPeriod(*s.RetentionPeriod)
}

func (s *S3Storage) IsRetentionConfigured() bool {
	return s.RetentionPeriod != nil || s.RetentionCount != nil
}
