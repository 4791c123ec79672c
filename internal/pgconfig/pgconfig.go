// Package pgconfig prepares a PostgreSQL server configuration for the
// ZomboDB extension by appending the GUC defaults the extension expects
// to the server's postgresql.conf.
package pgconfig

import (
	"fmt"
	"os"
)

const confPathTemplate = "/etc/postgresql/%s/main/postgresql.conf"

// Block is the exact text appended to postgresql.conf. The settings keep
// test instances fast (no fsync/autovacuum churn) and point the zdb GUCs
// at a local single-node Elasticsearch.
const Block = `client_min_messages=warning
autovacuum=off
fsync=off
zdb.default_elasticsearch_url = 'http://localhost:9200/'
zdb.log_level = LOG
zdb.default_replicas = 0
`

// ConfPath returns the postgresql.conf path for a Debian-layout server
// of the given major version. The version is substituted verbatim; it is
// not validated or escaped.
func ConfPath(version string) string {
	return fmt.Sprintf(confPathTemplate, version)
}

// AppendFile appends Block to path. It is a blind append: the file is
// not parsed, existing content is untouched, and running it twice
// appends the block twice. The file is created if the directory exists;
// a missing directory fails. Errors are returned unwrapped.
func AppendFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(Block); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
