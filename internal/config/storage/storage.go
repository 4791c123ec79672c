package storage

// Storage names the backends index dumps are written to. Both blocks are
// optional; a dump fans out to every configured backend.
type Storage struct {
	S3    *S3Storage    `hcl:"s3,block"`
	Local *LocalStorage `hcl:"local,block"`
}
